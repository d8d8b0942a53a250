package inmemdb

import (
	"context"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/user"
)

type scholarshipRepository struct {
	db      *DB
	periods *periodRepository
}

func NewScholarshipRepository(db *DB) scholarship.Repository {
	return &scholarshipRepository{db: db, periods: &periodRepository{db: db}}
}

func cloneScholarship(s scholarship.Scholarship) scholarship.Scholarship {
	s.UserID = copyIntPtr(s.UserID)
	s.PeriodID = copyIntPtr(s.PeriodID)
	s.Files = copyFiles(s.Files)
	return s
}

func (repo *scholarshipRepository) checkRefs(s scholarship.Scholarship) error {
	if s.UserID != nil {
		if _, ok := repo.db.users[*s.UserID]; !ok {
			return user.ErrNotFound
		}
	}
	if s.PeriodID != nil {
		if _, ok := repo.db.periods[*s.PeriodID]; !ok {
			return scholarship.ErrNoPeriod
		}
	}
	return nil
}

func (repo *scholarshipRepository) CreateScholarship(_ context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkRefs(s); err != nil {
		return scholarship.Scholarship{}, err
	}
	s.ID = repo.db.nextID("scholarships")
	repo.db.scholarships[s.ID] = cloneScholarship(s)
	return cloneScholarship(s), nil
}

func (repo *scholarshipRepository) GetScholarship(_ context.Context, id int) (scholarship.Scholarship, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.scholarships[id]; ok {
		return cloneScholarship(s), nil
	}
	return scholarship.Scholarship{}, scholarship.ErrNotFound
}

var scholarshipComparators = comparators[scholarship.Scholarship]{
	"id":               func(a, b scholarship.Scholarship) int { return cmpInt(a.ID, b.ID) },
	"status":           func(a, b scholarship.Scholarship) int { return cmpString(string(a.Status), string(b.Status)) },
	"amount_requested": func(a, b scholarship.Scholarship) int { return cmpFloat(a.AmountRequested, b.AmountRequested) },
	"created_at":       func(a, b scholarship.Scholarship) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *scholarshipRepository) QueryScholarships(_ context.Context, filter scholarship.QueryFilter) ([]scholarship.Scholarship, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schs := make([]scholarship.Scholarship, 0)
	for _, s := range repo.db.scholarships {
		if !core.StatusIn(s.Status, filter.Statuses) || !core.StatusIn(s.StatusTutor, filter.TutorStatuses) {
			continue
		}
		if filter.PeriodID != 0 && (s.PeriodID == nil || *s.PeriodID != filter.PeriodID) {
			continue
		}
		if filter.UserID != 0 && !s.IsOwnedBy(filter.UserID) {
			continue
		}
		if filter.DegreeLevel != "" && s.DegreeLevel != filter.DegreeLevel {
			continue
		}
		schs = append(schs, cloneScholarship(s))
	}
	sortRows(schs, filter.Orderings, scholarshipComparators, func(s scholarship.Scholarship) int { return s.ID })
	page, total := paginate(schs, filter.PageRequest)
	return page, total, nil
}

// mergeFiles returns current without the removed files, followed by the added ones.
func mergeFiles(current []core.File, removed []string, added []core.File) []core.File {
	drop := make(map[string]bool, len(removed))
	for _, id := range removed {
		drop[id] = true
	}
	files := make([]core.File, 0, len(current)+len(added))
	for _, f := range current {
		if !drop[f.ID] {
			files = append(files, f)
		}
	}
	return append(files, added...)
}

func (repo *scholarshipRepository) UpdateScholarship(
	_ context.Context, s scholarship.Scholarship, removed []string, added []core.File,
) (scholarship.Scholarship, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.scholarships[s.ID]
	if !ok {
		return scholarship.Scholarship{}, scholarship.ErrNotFound
	}
	if err := repo.checkRefs(s); err != nil {
		return scholarship.Scholarship{}, err
	}
	// review fields only move through ReviewScholarship and TutorReviewScholarship
	s.Status = orig.Status
	s.StatusTutor = orig.StatusTutor
	s.AmountGranted = orig.AmountGranted
	s.Files = mergeFiles(orig.Files, removed, added)
	repo.db.scholarships[s.ID] = cloneScholarship(s)
	return cloneScholarship(s), nil
}

func (repo *scholarshipRepository) ReviewScholarship(_ context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.scholarships[s.ID]
	if !ok {
		return scholarship.Scholarship{}, scholarship.ErrNotFound
	}
	if orig.Status != core.StatusPending {
		return scholarship.Scholarship{}, scholarship.ErrAlreadyReviewed
	}
	if s.Status == core.StatusApproved {
		if orig.PeriodID == nil {
			return scholarship.Scholarship{}, scholarship.ErrNoPeriod
		}
		if _, err := repo.periods.consume(*orig.PeriodID, orig.DegreeLevel, s.AmountGranted); err != nil {
			return scholarship.Scholarship{}, err
		}
	}
	orig.Status = s.Status
	orig.AmountGranted = s.AmountGranted
	orig.UpdatedAt = s.UpdatedAt
	repo.db.scholarships[s.ID] = orig
	return cloneScholarship(orig), nil
}

func (repo *scholarshipRepository) TutorReviewScholarship(_ context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.scholarships[s.ID]
	if !ok {
		return scholarship.Scholarship{}, scholarship.ErrNotFound
	}
	orig.StatusTutor = s.StatusTutor
	orig.UpdatedAt = s.UpdatedAt
	repo.db.scholarships[s.ID] = orig
	return cloneScholarship(orig), nil
}

func (repo *scholarshipRepository) DeleteScholarship(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.scholarships[id]; !ok {
		return scholarship.ErrNotFound
	}
	delete(repo.db.scholarships, id)
	return nil
}
