package thesis

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

type Thesis struct {
	ID                 int         `json:"id"`
	UserID             *int        `json:"userId"`
	Title              string      `json:"title"`
	Status             core.Status `json:"status"`
	StartDate          core.Date   `json:"startDate"`
	EndDate            core.Date   `json:"endDate"`
	Extension          bool        `json:"extension"`
	ResourcesRequested bool        `json:"resourcesRequested"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// IsOwnedBy reports whether the thesis belongs to the user with the given ID.
func (th Thesis) IsOwnedBy(userID int) bool {
	return th.UserID != nil && *th.UserID == userID
}

type NewThesis struct {
	// UserID defaults to the session user, only executives may set it.
	UserID             *int      `json:"userId"`
	Title              string    `json:"title" validate:"required,max=300"`
	StartDate          core.Date `json:"startDate" validate:"required"`
	EndDate            core.Date `json:"endDate" validate:"required"`
	Extension          bool      `json:"extension"`
	ResourcesRequested bool      `json:"resourcesRequested"`
}

func (nt *NewThesis) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return core.CheckDateRange(nt.StartDate, nt.EndDate)
}

type UpdateThesis struct {
	Title              *string    `json:"title" validate:"omitempty,min=1,max=300"`
	StartDate          *core.Date `json:"startDate"`
	EndDate            *core.Date `json:"endDate"`
	Extension          *bool      `json:"extension"`
	ResourcesRequested *bool      `json:"resourcesRequested"`
}

func (ut *UpdateThesis) Validate(orig Thesis, validate *validator.Validate) error {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	start, end := orig.StartDate, orig.EndDate
	if ut.StartDate != nil {
		start = *ut.StartDate
	}
	if ut.EndDate != nil {
		end = *ut.EndDate
	}
	return core.CheckDateRange(start, end)
}

func (ut UpdateThesis) apply(th *Thesis) {
	if ut.Title != nil {
		th.Title = *ut.Title
	}
	if ut.StartDate != nil {
		th.StartDate = *ut.StartDate
	}
	if ut.EndDate != nil {
		th.EndDate = *ut.EndDate
	}
	if ut.Extension != nil {
		th.Extension = *ut.Extension
	}
	if ut.ResourcesRequested != nil {
		th.ResourcesRequested = *ut.ResourcesRequested
	}
}

// Review is an executive decision on a thesis.
type Review struct {
	Status string `json:"status" validate:"required"`

	status core.Status
}

func (r *Review) Validate(validate *validator.Validate) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	st, err := core.ParseStatus(r.Status)
	if err != nil {
		return core.NewFieldError("status", err.Error())
	}
	r.status = st
	return nil
}

type QueryFilter struct {
	core.PageRequest
	Status []string `json:"status" query:"status"`
	UserID int      `json:"userId" query:"userId"`
	// Search does a case-insensitive match on the title.
	Search   string `json:"search" query:"search"`
	Ordering string `json:"ordering" query:"ordering"`

	Statuses  []core.Status     `json:"-" query:"-"`
	Orderings []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"status":    "status",
	"startDate": "start_date",
	"endDate":   "end_date",
	"createdAt": "created_at",
}

func (qf *QueryFilter) Clean() error {
	qf.PageRequest.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
	sts, err := core.ParseStatuses(qf.Status)
	if err != nil {
		return core.NewFieldError("status", err.Error())
	}
	qf.Statuses = sts
	return nil
}
