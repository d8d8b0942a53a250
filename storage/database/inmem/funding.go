package inmemdb

import (
	"context"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/funding"
	"github.com/trezcool/investiga/core/user"
)

type fundingRepository struct {
	db *DB
}

func NewFundingRepository(db *DB) funding.Repository {
	return &fundingRepository{db: db}
}

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

func cloneFundingRequest(fr funding.FundingRequest) funding.FundingRequest {
	fr.UserID = copyIntPtr(fr.UserID)
	fr.BudgetID = copyIntPtr(fr.BudgetID)
	fr.OtherPurpose = copyStrPtr(fr.OtherPurpose)
	fr.ConferenceName = copyStrPtr(fr.ConferenceName)
	fr.ConferenceRank = copyStrPtr(fr.ConferenceRank)
	fr.PresentationTitle = copyStrPtr(fr.PresentationTitle)
	fr.FinancingType = copyStrings(fr.FinancingType)
	fr.Files = copyFiles(fr.Files)
	return fr
}

func (repo *fundingRepository) CreateFundingRequest(_ context.Context, fr funding.FundingRequest) (funding.FundingRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if fr.UserID != nil {
		if _, ok := repo.db.users[*fr.UserID]; !ok {
			return funding.FundingRequest{}, user.ErrNotFound
		}
	}
	fr.ID = repo.db.nextID("funding_requests")
	repo.db.funding[fr.ID] = cloneFundingRequest(fr)
	return cloneFundingRequest(fr), nil
}

func (repo *fundingRepository) GetFundingRequest(_ context.Context, id int) (funding.FundingRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if fr, ok := repo.db.funding[id]; ok {
		return cloneFundingRequest(fr), nil
	}
	return funding.FundingRequest{}, funding.ErrNotFound
}

var fundingComparators = comparators[funding.FundingRequest]{
	"id":               func(a, b funding.FundingRequest) int { return cmpInt(a.ID, b.ID) },
	"status":           func(a, b funding.FundingRequest) int { return cmpString(string(a.Status), string(b.Status)) },
	"purpose":          func(a, b funding.FundingRequest) int { return cmpString(a.Purpose, b.Purpose) },
	"amount_requested": func(a, b funding.FundingRequest) int { return cmpFloat(a.AmountRequested, b.AmountRequested) },
	"start_date":       func(a, b funding.FundingRequest) int { return a.StartDate.Compare(b.StartDate.Time) },
	"created_at":       func(a, b funding.FundingRequest) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func matchesFundingRequest(fr funding.FundingRequest, filter funding.QueryFilter) bool {
	if !core.StatusIn(fr.Status, filter.Statuses) {
		return false
	}
	if filter.UserID != 0 && !fr.IsOwnedBy(filter.UserID) {
		return false
	}
	if filter.Purpose != "" && fr.Purpose != filter.Purpose {
		return false
	}
	if filter.Search != "" {
		deref := func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		}
		if !containsFold(fr.Destination, filter.Search) && !containsFold(deref(fr.OtherPurpose), filter.Search) &&
			!containsFold(deref(fr.ConferenceName), filter.Search) {
			return false
		}
	}
	return true
}

func (repo *fundingRepository) QueryFundingRequests(_ context.Context, filter funding.QueryFilter) ([]funding.FundingRequest, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	frs := make([]funding.FundingRequest, 0)
	for _, fr := range repo.db.funding {
		if matchesFundingRequest(fr, filter) {
			frs = append(frs, cloneFundingRequest(fr))
		}
	}
	sortRows(frs, filter.Orderings, fundingComparators, func(fr funding.FundingRequest) int { return fr.ID })
	page, total := paginate(frs, filter.PageRequest)
	return page, total, nil
}

func (repo *fundingRepository) UpdateFundingRequest(
	_ context.Context, fr funding.FundingRequest, removed []string, added []core.File,
) (funding.FundingRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.funding[fr.ID]
	if !ok {
		return funding.FundingRequest{}, funding.ErrNotFound
	}
	fr.Status = orig.Status
	fr.BudgetID = orig.BudgetID
	fr.Files = mergeFiles(orig.Files, removed, added)
	repo.db.funding[fr.ID] = cloneFundingRequest(fr)
	return cloneFundingRequest(fr), nil
}

func (repo *fundingRepository) ReviewFundingRequest(_ context.Context, fr funding.FundingRequest) (funding.FundingRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.funding[fr.ID]
	if !ok {
		return funding.FundingRequest{}, funding.ErrNotFound
	}
	if orig.Status != core.StatusPending {
		return funding.FundingRequest{}, funding.ErrAlreadyReviewed
	}
	orig.Status = fr.Status
	orig.BudgetID = copyIntPtr(fr.BudgetID)
	orig.UpdatedAt = fr.UpdatedAt
	repo.db.funding[fr.ID] = orig
	return cloneFundingRequest(orig), nil
}

func (repo *fundingRepository) DeleteFundingRequest(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.funding[id]; !ok {
		return funding.ErrNotFound
	}
	delete(repo.db.funding, id)
	return nil
}
