package scholarship

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

type Scholarship struct {
	ID              int         `json:"id"`
	UserID          *int        `json:"userId"`
	PeriodID        *int        `json:"periodId"`
	DegreeLevel     core.Degree `json:"degreeLevel"`
	Status          core.Status `json:"status"`
	StatusTutor     core.Status `json:"statusTutor"`
	AmountRequested float64     `json:"amountRequested"`
	AmountGranted   float64     `json:"amountGranted"`
	BankName        string      `json:"bankName"`
	AccountType     string      `json:"accountType"`
	AccountNumber   string      `json:"accountNumber"`
	Files           []core.File `json:"files"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (s Scholarship) IsOwnedBy(userID int) bool {
	return s.UserID != nil && *s.UserID == userID
}

// NewScholarship is bound from a JSON body or from the "data" field of a multipart form.
type NewScholarship struct {
	PeriodID        int         `json:"periodId" validate:"required"`
	DegreeLevel     core.Degree `json:"degreeLevel" validate:"required,degree"`
	AmountRequested float64     `json:"amountRequested" validate:"gt=0"`
	BankName        string      `json:"bankName" validate:"max=100"`
	AccountType     string      `json:"accountType" validate:"max=50"`
	AccountNumber   string      `json:"accountNumber" validate:"max=50"`
}

func (ns *NewScholarship) Validate(validate *validator.Validate) error {
	ns.BankName = core.CleanString(ns.BankName)
	ns.AccountType = core.CleanString(ns.AccountType)
	ns.AccountNumber = core.CleanString(ns.AccountNumber)
	return validate.Struct(ns)
}

type UpdateScholarship struct {
	DegreeLevel     *core.Degree `json:"degreeLevel" validate:"omitempty,degree"`
	AmountRequested *float64     `json:"amountRequested" validate:"omitempty,gt=0"`
	BankName        *string      `json:"bankName" validate:"omitempty,max=100"`
	AccountType     *string      `json:"accountType" validate:"omitempty,max=50"`
	AccountNumber   *string      `json:"accountNumber" validate:"omitempty,max=50"`
}

func (us *UpdateScholarship) Validate(orig Scholarship, validate *validator.Validate) error {
	for _, s := range []*string{us.BankName, us.AccountType, us.AccountNumber} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if orig.Status.IsFinal() && (us.DegreeLevel != nil || us.AmountRequested != nil) {
		return core.NewValidationError(ErrAlreadyReviewed, core.FieldError{Field: "amountRequested", Error: ErrAlreadyReviewed.Error()})
	}
	return nil
}

func (us UpdateScholarship) apply(s *Scholarship) {
	if us.DegreeLevel != nil {
		s.DegreeLevel = *us.DegreeLevel
	}
	if us.AmountRequested != nil {
		s.AmountRequested = *us.AmountRequested
	}
	if us.BankName != nil {
		s.BankName = *us.BankName
	}
	if us.AccountType != nil {
		s.AccountType = *us.AccountType
	}
	if us.AccountNumber != nil {
		s.AccountNumber = *us.AccountNumber
	}
}

// Review is an executive decision, approving grants AmountGranted (AmountRequested by default).
type Review struct {
	Status        string   `json:"status" validate:"required"`
	AmountGranted *float64 `json:"amountGranted" validate:"omitempty,gt=0"`
	Comment       string   `json:"comment" validate:"max=2000"`

	status core.Status
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Comment = core.CleanString(r.Comment)
	if err := validate.Struct(r); err != nil {
		return err
	}
	st, err := core.ParseStatus(r.Status)
	if err != nil || !st.IsFinal() {
		return core.NewFieldError("status", "status must be Approved or Rejected")
	}
	r.status = st
	return nil
}

type TutorReview struct {
	StatusTutor string `json:"statusTutor" validate:"required"`

	status core.Status
}

func (r *TutorReview) Validate(validate *validator.Validate) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	st, err := core.ParseStatus(r.StatusTutor)
	if err != nil {
		return core.NewFieldError("statusTutor", err.Error())
	}
	r.status = st
	return nil
}

type QueryFilter struct {
	core.PageRequest
	Status      []string    `json:"status" query:"status"`
	StatusTutor []string    `json:"statusTutor" query:"statusTutor"`
	PeriodID    int         `json:"periodId" query:"periodId"`
	UserID      int         `json:"userId" query:"userId"`
	DegreeLevel core.Degree `json:"degreeLevel" query:"degreeLevel"`
	Ordering    string      `json:"ordering" query:"ordering"`

	Statuses      []core.Status     `json:"-" query:"-"`
	TutorStatuses []core.Status     `json:"-" query:"-"`
	Orderings     []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":              "id",
	"status":          "status",
	"amountRequested": "amount_requested",
	"createdAt":       "created_at",
}

func (qf *QueryFilter) Clean() error {
	qf.PageRequest.Clean()
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
	var err error
	if qf.Statuses, err = core.ParseStatuses(qf.Status); err != nil {
		return core.NewFieldError("status", err.Error())
	}
	if qf.TutorStatuses, err = core.ParseStatuses(qf.StatusTutor); err != nil {
		return core.NewFieldError("statusTutor", err.Error())
	}
	if qf.DegreeLevel != "" && !qf.DegreeLevel.Valid() {
		return core.NewFieldError("degreeLevel", "invalid degree")
	}
	return nil
}
