package inmemdb

import (
	"context"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
)

type periodRepository struct {
	db *DB
}

func NewPeriodRepository(db *DB) period.Repository {
	return &periodRepository{db: db}
}

func (repo *periodRepository) titleExists(title string, excludedID int) bool {
	for _, p := range repo.db.periods {
		if p.ID != excludedID && p.Title == title {
			return true
		}
	}
	return false
}

func (repo *periodRepository) TitleExists(_ context.Context, title string, excludedID int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.titleExists(title, excludedID), nil
}

func (repo *periodRepository) CreatePeriod(_ context.Context, p period.ApplicationPeriod) (period.ApplicationPeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.titleExists(p.Title, 0) {
		return period.ApplicationPeriod{}, period.ErrTitleExists
	}
	p.ID = repo.db.nextID("application_periods")
	repo.db.periods[p.ID] = p
	return p, nil
}

func (repo *periodRepository) GetPeriod(_ context.Context, id int) (period.ApplicationPeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.periods[id]; ok {
		return p, nil
	}
	return period.ApplicationPeriod{}, period.ErrNotFound
}

var periodComparators = comparators[period.ApplicationPeriod]{
	"id":         func(a, b period.ApplicationPeriod) int { return cmpInt(a.ID, b.ID) },
	"title":      func(a, b period.ApplicationPeriod) int { return cmpString(a.Title, b.Title) },
	"start_date": func(a, b period.ApplicationPeriod) int { return a.StartDate.Compare(b.StartDate.Time) },
	"end_date":   func(a, b period.ApplicationPeriod) int { return a.EndDate.Compare(b.EndDate.Time) },
	"created_at": func(a, b period.ApplicationPeriod) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *periodRepository) QueryPeriods(_ context.Context, filter period.QueryFilter) ([]period.ApplicationPeriod, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	periods := make([]period.ApplicationPeriod, 0)
	for _, p := range repo.db.periods {
		if filter.Search != "" && !containsFold(p.Title, filter.Search) && !containsFold(p.Description, filter.Search) {
			continue
		}
		if filter.Status != "" && p.StatusApplication != filter.Status {
			continue
		}
		periods = append(periods, p)
	}
	sortRows(periods, filter.Orderings, periodComparators, func(p period.ApplicationPeriod) int { return p.ID })
	page, total := paginate(periods, filter.PageRequest)
	return page, total, nil
}

func (repo *periodRepository) UpdatePeriod(_ context.Context, p period.ApplicationPeriod) (period.ApplicationPeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.periods[p.ID]
	if !ok {
		return period.ApplicationPeriod{}, period.ErrNotFound
	}
	if repo.titleExists(p.Title, p.ID) {
		return period.ApplicationPeriod{}, period.ErrTitleExists
	}
	// the used budget only moves through ConsumeBudget
	p.UsedBudget = orig.UsedBudget
	for _, d := range core.Degrees {
		if p.TotalBudget.Of(d) < p.UsedBudget.Of(d) {
			return period.ApplicationPeriod{}, period.ErrBelowUsed
		}
	}
	repo.db.periods[p.ID] = p
	return p, nil
}

func (repo *periodRepository) DeletePeriod(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.periods[id]; !ok {
		return period.ErrNotFound
	}
	delete(repo.db.periods, id)
	for sid, s := range repo.db.scholarships {
		if nullRefs(&s.PeriodID, id) {
			repo.db.scholarships[sid] = s
		}
	}
	return nil
}

// consume must be called with the write lock held.
func (repo *periodRepository) consume(id int, d core.Degree, amt float64) (period.ApplicationPeriod, error) {
	p, ok := repo.db.periods[id]
	if !ok {
		return period.ApplicationPeriod{}, period.ErrNotFound
	}
	used := p.UsedBudget.Of(d) + amt
	if used > p.TotalBudget.Of(d) || used < 0 {
		return period.ApplicationPeriod{}, period.ErrBudgetExceeded
	}
	p.UsedBudget = p.UsedBudget.Add(d, amt)
	repo.db.periods[id] = p
	return p, nil
}

func (repo *periodRepository) ConsumeBudget(_ context.Context, id int, d core.Degree, amt float64) (period.ApplicationPeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.consume(id, d, amt)
}
