package research

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var (
	ErrNotFound     = core.NewError(core.KindNotFound, "research not found")
	ErrUserNotFound = core.NewError(core.KindNotFound, "user not found")
)

type (
	Repository interface {
		// CreateResearch stores res and links it to res.UserIDs.
		CreateResearch(ctx context.Context, res Research) (Research, error)
		GetResearch(ctx context.Context, id int) (Research, error)
		// GetResearchByDOI matches the DOI case-insensitively.
		GetResearchByDOI(ctx context.Context, doi string) (Research, error)
		QueryResearches(ctx context.Context, filter QueryFilter) ([]Research, int, error)
		UpdateResearch(ctx context.Context, res Research) (Research, error)
		// DeleteResearch removes the research and its links, the linked users are kept.
		DeleteResearch(ctx context.Context, id int) error
		// LinkUser is a no-op when the link exists, ErrUserNotFound when the user does not.
		LinkUser(ctx context.Context, researchID, userID int) error
		UnlinkUser(ctx context.Context, researchID, userID int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nr NewResearch) (Research, error) {
	now := time.Now().UTC()
	res := Research{
		DOI:       nr.DOI,
		Title:     nr.Title,
		Year:      nr.Year,
		Month:     nr.Month,
		Authors:   nr.Authors,
		FirstPage: nr.FirstPage,
		LastPage:  nr.LastPage,
		Venue:     nr.Venue,
		Link:      nr.Link,
		PDF:       nr.PDF,
		UserIDs:   uniqueIDs(nr.UserIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if res.Authors == nil {
		res.Authors = []string{}
	}
	res, err := svc.repo.CreateResearch(ctx, res)
	if errors.Cause(err) == ErrUserNotFound {
		return Research{}, core.NewValidationError(err, core.FieldError{Field: "userIds", Error: err.Error()})
	}
	return res, errors.Wrap(err, "creating research")
}

func (svc *Service) Get(ctx context.Context, id int) (Research, error) {
	return svc.repo.GetResearch(ctx, id)
}

func (svc *Service) GetByDOI(ctx context.Context, doi string) (Research, error) {
	return svc.repo.GetResearchByDOI(ctx, core.CleanString(doi, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	researches, total, err := svc.repo.QueryResearches(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying researches")
	}
	if researches == nil {
		researches = []Research{}
	}
	return core.NewPage(researches, total, filter.PageRequest), nil
}

// ListByUser returns every research linked to the user.
func (svc *Service) ListByUser(ctx context.Context, userID int) ([]Research, error) {
	filter := QueryFilter{UserID: userID, PageRequest: core.PageRequest{Page: 1, PageSize: core.MaxPageSize}}
	var all []Research
	for {
		page, total, err := svc.repo.QueryResearches(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying user researches")
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			break
		}
		filter.Page++
	}
	if all == nil {
		all = []Research{}
	}
	return all, nil
}

func (svc *Service) Update(ctx context.Context, orig Research, ur UpdateResearch) (Research, error) {
	res := orig
	ur.apply(&res)
	res.UpdatedAt = time.Now().UTC()
	res, err := svc.repo.UpdateResearch(ctx, res)
	return res, errors.Wrap(err, "updating research")
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteResearch(ctx, id)
}

func (svc *Service) LinkUser(ctx context.Context, researchID, userID int) error {
	if _, err := svc.repo.GetResearch(ctx, researchID); err != nil {
		return err
	}
	return svc.repo.LinkUser(ctx, researchID, userID)
}

func (svc *Service) UnlinkUser(ctx context.Context, researchID, userID int) error {
	return svc.repo.UnlinkUser(ctx, researchID, userID)
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	uniq := make([]int, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	return uniq
}
