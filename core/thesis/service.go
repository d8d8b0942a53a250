package thesis

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var (
	ErrNotFound = core.NewError(core.KindNotFound, "thesis not found")
	ErrNoStatus = core.NewError(core.KindBadData, "review has no status")
)

type (
	Repository interface {
		CreateThesis(ctx context.Context, th Thesis) (Thesis, error)
		GetThesis(ctx context.Context, id int) (Thesis, error)
		QueryTheses(ctx context.Context, filter QueryFilter) ([]Thesis, int, error)
		UpdateThesis(ctx context.Context, th Thesis) (Thesis, error)
		DeleteThesis(ctx context.Context, id int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a validated NewThesis owned by ownerID.
func (svc *Service) Create(ctx context.Context, ownerID int, nt NewThesis) (Thesis, error) {
	now := time.Now().UTC()
	th, err := svc.repo.CreateThesis(ctx, Thesis{
		UserID:             &ownerID,
		Title:              nt.Title,
		Status:             core.StatusPending,
		StartDate:          nt.StartDate,
		EndDate:            nt.EndDate,
		Extension:          nt.Extension,
		ResourcesRequested: nt.ResourcesRequested,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	return th, errors.Wrap(err, "creating thesis")
}

func (svc *Service) Get(ctx context.Context, id int) (Thesis, error) {
	return svc.repo.GetThesis(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	theses, total, err := svc.repo.QueryTheses(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying theses")
	}
	if theses == nil {
		theses = []Thesis{}
	}
	return core.NewPage(theses, total, filter.PageRequest), nil
}

// Update applies a validated UpdateThesis to orig.
func (svc *Service) Update(ctx context.Context, orig Thesis, ut UpdateThesis) (Thesis, error) {
	th := orig
	ut.apply(&th)
	th.UpdatedAt = time.Now().UTC()
	th, err := svc.repo.UpdateThesis(ctx, th)
	return th, errors.Wrap(err, "updating thesis")
}

// Review sets the status of a thesis, a reviewed thesis may be reviewed again.
func (svc *Service) Review(ctx context.Context, orig Thesis, r Review) (Thesis, error) {
	if r.status == "" {
		return Thesis{}, ErrNoStatus
	}
	th := orig
	th.Status = r.status
	th.UpdatedAt = time.Now().UTC()
	th, err := svc.repo.UpdateThesis(ctx, th)
	return th, errors.Wrap(err, "reviewing thesis")
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteThesis(ctx, id)
}
