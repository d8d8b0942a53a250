package period

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var (
	ErrNotFound       = core.NewError(core.KindNotFound, "application period not found")
	ErrTitleExists    = core.NewError(core.KindBadData, "an application period with this title already exists")
	ErrBudgetExceeded = core.NewError(core.KindBadData, "the amount exceeds the budget available")
	ErrInvalidDegree  = core.NewError(core.KindBadData, "invalid degree")
	ErrBelowUsed      = core.NewError(core.KindBadData, "the total budget is below the budget already granted")
)

type (
	Repository interface {
		TitleExists(ctx context.Context, title string, excludedID int) (bool, error)
		CreatePeriod(ctx context.Context, p ApplicationPeriod) (ApplicationPeriod, error)
		GetPeriod(ctx context.Context, id int) (ApplicationPeriod, error)
		QueryPeriods(ctx context.Context, filter QueryFilter) ([]ApplicationPeriod, int, error)
		// UpdatePeriod fails with ErrBelowUsed when a total budget is below its used one.
		UpdatePeriod(ctx context.Context, p ApplicationPeriod) (ApplicationPeriod, error)
		// DeletePeriod removes the period, its scholarships are kept without period.
		DeletePeriod(ctx context.Context, id int) error
		// ConsumeBudget adds amt to the used budget of degree d in a single step.
		// It fails with ErrBudgetExceeded, leaving the period untouched, when the used budget would
		// exceed the total one.
		ConsumeBudget(ctx context.Context, id int, d core.Degree, amt float64) (ApplicationPeriod, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkTitle(ctx context.Context, title string, excludedID int) error {
	exists, err := svc.repo.TitleExists(ctx, title, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking period title uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrTitleExists, core.FieldError{Field: "periodTitle", Error: ErrTitleExists.Error()})
	}
	return nil
}

// Create stores a validated NewPeriod, nothing of its budget is used yet.
func (svc *Service) Create(ctx context.Context, np NewPeriod) (ApplicationPeriod, error) {
	if err := svc.checkTitle(ctx, np.Title, 0); err != nil {
		return ApplicationPeriod{}, err
	}
	status := np.status
	if status == "" {
		status = Open
	}
	now := time.Now().UTC()
	p, err := svc.repo.CreatePeriod(ctx, ApplicationPeriod{
		Title:             np.Title,
		Description:       np.Description,
		StatusApplication: status,
		StartDate:         np.StartDate,
		EndDate:           np.EndDate,
		TotalBudget:       np.TotalBudget,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	return p, errors.Wrap(err, "creating application period")
}

func (svc *Service) Get(ctx context.Context, id int) (ApplicationPeriod, error) {
	return svc.repo.GetPeriod(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	periods, total, err := svc.repo.QueryPeriods(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying application periods")
	}
	if periods == nil {
		periods = []ApplicationPeriod{}
	}
	return core.NewPage(periods, total, filter.PageRequest), nil
}

func (svc *Service) Update(ctx context.Context, orig ApplicationPeriod, up UpdatePeriod) (ApplicationPeriod, error) {
	if up.Title != nil && *up.Title != orig.Title {
		if err := svc.checkTitle(ctx, *up.Title, orig.ID); err != nil {
			return ApplicationPeriod{}, err
		}
	}
	p := orig
	up.apply(&p)
	p.UpdatedAt = time.Now().UTC()
	p, err := svc.repo.UpdatePeriod(ctx, p)
	if errors.Cause(err) == ErrBelowUsed {
		return ApplicationPeriod{}, core.NewValidationError(ErrBelowUsed, core.FieldError{Field: "totalBudget", Error: ErrBelowUsed.Error()})
	}
	return p, errors.Wrap(err, "updating application period")
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeletePeriod(ctx, id)
}

// Consume uses amt of the budget of degree d. A negative amt gives budget back.
func (svc *Service) Consume(ctx context.Context, id int, d core.Degree, amt float64) (ApplicationPeriod, error) {
	if !d.Valid() {
		return ApplicationPeriod{}, core.NewValidationError(ErrInvalidDegree, core.FieldError{Field: "degreeLevel", Error: ErrInvalidDegree.Error()})
	}
	p, err := svc.repo.ConsumeBudget(ctx, id, d, amt)
	if errors.Cause(err) == ErrBudgetExceeded {
		return ApplicationPeriod{}, core.NewValidationError(ErrBudgetExceeded, core.FieldError{Field: "amountGranted", Error: ErrBudgetExceeded.Error()})
	}
	return p, err
}
