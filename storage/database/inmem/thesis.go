package inmemdb

import (
	"context"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
)

type thesisRepository struct {
	db *DB
}

func NewThesisRepository(db *DB) thesis.Repository {
	return &thesisRepository{db: db}
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	i := *p
	return &i
}

func cloneThesis(th thesis.Thesis) thesis.Thesis {
	th.UserID = copyIntPtr(th.UserID)
	return th
}

func (repo *thesisRepository) checkUser(userID *int) error {
	if userID == nil {
		return nil
	}
	if _, ok := repo.db.users[*userID]; !ok {
		return user.ErrNotFound
	}
	return nil
}

func (repo *thesisRepository) CreateThesis(_ context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUser(th.UserID); err != nil {
		return thesis.Thesis{}, err
	}
	th.ID = repo.db.nextID("theses")
	repo.db.theses[th.ID] = cloneThesis(th)
	return cloneThesis(th), nil
}

func (repo *thesisRepository) GetThesis(_ context.Context, id int) (thesis.Thesis, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if th, ok := repo.db.theses[id]; ok {
		return cloneThesis(th), nil
	}
	return thesis.Thesis{}, thesis.ErrNotFound
}

var thesisComparators = comparators[thesis.Thesis]{
	"id":         func(a, b thesis.Thesis) int { return cmpInt(a.ID, b.ID) },
	"title":      func(a, b thesis.Thesis) int { return cmpString(a.Title, b.Title) },
	"status":     func(a, b thesis.Thesis) int { return cmpString(string(a.Status), string(b.Status)) },
	"start_date": func(a, b thesis.Thesis) int { return a.StartDate.Compare(b.StartDate.Time) },
	"end_date":   func(a, b thesis.Thesis) int { return a.EndDate.Compare(b.EndDate.Time) },
	"created_at": func(a, b thesis.Thesis) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *thesisRepository) QueryTheses(_ context.Context, filter thesis.QueryFilter) ([]thesis.Thesis, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	theses := make([]thesis.Thesis, 0)
	for _, th := range repo.db.theses {
		if !core.StatusIn(th.Status, filter.Statuses) {
			continue
		}
		if filter.UserID != 0 && !th.IsOwnedBy(filter.UserID) {
			continue
		}
		if filter.Search != "" && !containsFold(th.Title, filter.Search) {
			continue
		}
		theses = append(theses, cloneThesis(th))
	}
	sortRows(theses, filter.Orderings, thesisComparators, func(th thesis.Thesis) int { return th.ID })
	page, total := paginate(theses, filter.PageRequest)
	return page, total, nil
}

func (repo *thesisRepository) UpdateThesis(_ context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.theses[th.ID]; !ok {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	if err := repo.checkUser(th.UserID); err != nil {
		return thesis.Thesis{}, err
	}
	repo.db.theses[th.ID] = cloneThesis(th)
	return cloneThesis(th), nil
}

func (repo *thesisRepository) DeleteThesis(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.theses[id]; !ok {
		return thesis.ErrNotFound
	}
	delete(repo.db.theses, id)
	return nil
}
