package period

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

// ApplicationStatus tells whether a period takes scholarship applications.
type ApplicationStatus string

const (
	Open   ApplicationStatus = "Abierto"
	Closed ApplicationStatus = "Cerrado"
)

var (
	ErrInvalidStatus = core.NewError(core.KindBadData, "invalid statusApplication, expected Abierto or Cerrado")

	statusAliases = map[string]ApplicationStatus{
		"abierto": Open,
		"activo":  Open,
		"open":    Open,
		"cerrado": Closed,
		"closed":  Closed,
	}
)

func ParseStatus(s string) (ApplicationStatus, error) {
	if st, ok := statusAliases[core.CleanString(s, true /* lower */)]; ok {
		return st, nil
	}
	return "", ErrInvalidStatus
}

// ApplicationPeriod is a window during which students apply for scholarships
// against a per-degree budget.
type ApplicationPeriod struct {
	ID                int               `json:"id"`
	Title             string            `json:"periodTitle"`
	Description       string            `json:"description"`
	StatusApplication ApplicationStatus `json:"statusApplication"`
	StartDate         core.Date         `json:"startDate"`
	EndDate           core.Date         `json:"endDate"`
	TotalBudget       core.Budget       `json:"totalBudget"`
	UsedBudget        core.Budget       `json:"usedBudget"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// IsOpen reports whether the period takes applications at t.
func (p ApplicationPeriod) IsOpen(t time.Time) bool {
	return p.StatusApplication == Open && core.Contains(p.StartDate, p.EndDate, t)
}

// Available returns the budget left for degree d.
func (p ApplicationPeriod) Available(d core.Degree) float64 {
	return p.TotalBudget.Of(d) - p.UsedBudget.Of(d)
}

type NewPeriod struct {
	Title             string      `json:"periodTitle" validate:"required,max=200"`
	Description       string      `json:"description"`
	StatusApplication string      `json:"statusApplication"`
	StartDate         core.Date   `json:"startDate" validate:"required"`
	EndDate           core.Date   `json:"endDate" validate:"required"`
	TotalBudget       core.Budget `json:"totalBudget"`

	status ApplicationStatus
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	if err := validate.Struct(np); err != nil {
		return err
	}
	np.status = Open
	if np.StatusApplication != "" {
		st, err := ParseStatus(np.StatusApplication)
		if err != nil {
			return core.NewFieldError("statusApplication", err.Error())
		}
		np.status = st
	}
	return core.CheckDateRange(np.StartDate, np.EndDate)
}

type UpdatePeriod struct {
	Title             *string      `json:"periodTitle" validate:"omitempty,min=1,max=200"`
	Description       *string      `json:"description"`
	StatusApplication *string      `json:"statusApplication"`
	StartDate         *core.Date   `json:"startDate"`
	EndDate           *core.Date   `json:"endDate"`
	TotalBudget       *core.Budget `json:"totalBudget"`

	status ApplicationStatus
}

func (up *UpdatePeriod) Validate(orig ApplicationPeriod, validate *validator.Validate) error {
	if up.Title != nil {
		*up.Title = core.CleanString(*up.Title)
	}
	if up.Description != nil {
		*up.Description = core.CleanString(*up.Description)
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.StatusApplication != nil {
		st, err := ParseStatus(*up.StatusApplication)
		if err != nil {
			return core.NewFieldError("statusApplication", err.Error())
		}
		up.status = st
	}

	p := orig
	up.apply(&p)
	for _, d := range core.Degrees {
		if p.TotalBudget.Of(d) < p.UsedBudget.Of(d) {
			return core.NewFieldError("totalBudget", "totalBudget."+string(d)+" is below the budget already granted")
		}
	}
	return core.CheckDateRange(p.StartDate, p.EndDate)
}

func (up UpdatePeriod) apply(p *ApplicationPeriod) {
	if up.Title != nil {
		p.Title = *up.Title
	}
	if up.Description != nil {
		p.Description = *up.Description
	}
	if up.status != "" {
		p.StatusApplication = up.status
	}
	if up.StartDate != nil {
		p.StartDate = *up.StartDate
	}
	if up.EndDate != nil {
		p.EndDate = *up.EndDate
	}
	if up.TotalBudget != nil {
		p.TotalBudget = *up.TotalBudget
	}
}

type QueryFilter struct {
	core.PageRequest
	Search            string `json:"search" query:"search"`
	StatusApplication string `json:"statusApplication" query:"statusApplication"`
	Ordering          string `json:"ordering" query:"ordering"`

	Status    ApplicationStatus `json:"-" query:"-"`
	Orderings []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":          "id",
	"periodTitle": "title",
	"startDate":   "start_date",
	"endDate":     "end_date",
	"createdAt":   "created_at",
}

func (qf *QueryFilter) Clean() error {
	qf.PageRequest.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
	qf.Status = ""
	if qf.StatusApplication != "" {
		st, err := ParseStatus(qf.StatusApplication)
		if err != nil {
			return core.NewFieldError("statusApplication", err.Error())
		}
		qf.Status = st
	}
	return nil
}
