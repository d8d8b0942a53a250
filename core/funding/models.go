package funding

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

const (
	PurposeConference = "Congreso"
	PurposeInternship = "Pasantía"
	PurposeFieldwork  = "Trabajo de campo"
	PurposeOther      = "Otro"

	FinancingTickets      = "Pasajes"
	FinancingAllowance    = "Viático"
	FinancingRegistration = "Inscripción"
	FinancingOther        = "Otro"
)

var (
	purposes       = canonicalSet(PurposeConference, PurposeInternship, PurposeFieldwork, PurposeOther)
	financingTypes = canonicalSet(FinancingTickets, FinancingAllowance, FinancingRegistration, FinancingOther)

	accents = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")
)

// canonicalSet maps the folded spelling of values to the values.
func canonicalSet(values ...string) map[string]string {
	set := make(map[string]string, len(values))
	for _, v := range values {
		set[fold(v)] = v
	}
	return set
}

func fold(s string) string {
	return accents.Replace(strings.Join(strings.Fields(strings.ToLower(s)), " "))
}

// ParsePurpose returns the canonical spelling of a purpose, matched regardless of case and accents.
func ParsePurpose(s string) (string, bool) {
	p, ok := purposes[fold(s)]
	return p, ok
}

// ParseFinancingTypes canonicalizes and dedupes financing types.
func ParseFinancingTypes(ss []string) ([]string, bool) {
	seen := make(map[string]bool, len(ss))
	types := make([]string, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			continue
		}
		ft, ok := financingTypes[fold(s)]
		if !ok {
			return nil, false
		}
		if !seen[ft] {
			seen[ft] = true
			types = append(types, ft)
		}
	}
	return types, true
}

type FundingRequest struct {
	ID                int         `json:"id"`
	UserID            *int        `json:"userId"`
	Purpose           string      `json:"purpose"`
	OtherPurpose      *string     `json:"otherPurpose"`
	FinancingType     []string    `json:"financingType"`
	AmountRequested   float64     `json:"amountRequested"`
	Destination       string      `json:"destination"`
	StartDate         core.Date   `json:"startDate"`
	EndDate           core.Date   `json:"endDate"`
	ConferenceName    *string     `json:"conferenceName"`
	ConferenceRank    *string     `json:"conferenceRank"`
	PresentationTitle *string     `json:"presentationTitle"`
	Status            core.Status `json:"status"`
	BudgetID          *int        `json:"budgetId"`
	Files             []core.File `json:"files"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (fr FundingRequest) IsOwnedBy(userID int) bool {
	return fr.UserID != nil && *fr.UserID == userID
}

// normalize enforces the purpose dependent fields of a complete request:
// otherPurpose only exists for "Otro", the conference fields only for "Congreso".
func (fr *FundingRequest) normalize() error {
	purpose, ok := ParsePurpose(fr.Purpose)
	if !ok {
		return core.NewFieldError("purpose", "invalid purpose, expected one of Congreso, Pasantía, Trabajo de campo or Otro")
	}
	fr.Purpose = purpose

	types, ok := ParseFinancingTypes(fr.FinancingType)
	if !ok {
		return core.NewFieldError("financingType", "invalid financing type, expected any of Pasajes, Viático, Inscripción or Otro")
	}
	if len(types) == 0 {
		return core.NewFieldError("financingType", "at least one financing type is required")
	}
	fr.FinancingType = types

	fr.OtherPurpose = cleanOptional(fr.OtherPurpose)
	if purpose == PurposeOther {
		if fr.OtherPurpose == nil {
			return core.NewFieldError("otherPurpose", "this field is required")
		}
	} else {
		fr.OtherPurpose = nil
	}

	fr.ConferenceName = cleanOptional(fr.ConferenceName)
	fr.ConferenceRank = cleanOptional(fr.ConferenceRank)
	fr.PresentationTitle = cleanOptional(fr.PresentationTitle)
	if purpose == PurposeConference {
		if fr.ConferenceName == nil {
			return core.NewFieldError("conferenceName", "this field is required")
		}
	} else {
		fr.ConferenceName, fr.ConferenceRank, fr.PresentationTitle = nil, nil, nil
	}

	fr.Destination = core.CleanString(fr.Destination)
	return core.CheckDateRange(fr.StartDate, fr.EndDate)
}

// cleanOptional trims s, blank values being null.
func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	cs := core.CleanString(*s)
	if cs == "" {
		return nil
	}
	return &cs
}

type NewFundingRequest struct {
	Purpose           string    `json:"purpose" validate:"required"`
	OtherPurpose      *string   `json:"otherPurpose" validate:"omitempty,max=300"`
	FinancingType     []string  `json:"financingType" validate:"required"`
	AmountRequested   float64   `json:"amountRequested" validate:"gt=0"`
	Destination       string    `json:"destination" validate:"required,max=200"`
	StartDate         core.Date `json:"startDate" validate:"required"`
	EndDate           core.Date `json:"endDate" validate:"required"`
	ConferenceName    *string   `json:"conferenceName" validate:"omitempty,max=300"`
	ConferenceRank    *string   `json:"conferenceRank" validate:"omitempty,max=20"`
	PresentationTitle *string   `json:"presentationTitle" validate:"omitempty,max=300"`
}

// Validate checks nfr and returns the request it describes.
func (nfr *NewFundingRequest) Validate(validate *validator.Validate) (FundingRequest, error) {
	nfr.Destination = core.CleanString(nfr.Destination)
	if err := validate.Struct(nfr); err != nil {
		return FundingRequest{}, err
	}
	fr := FundingRequest{
		Purpose:           nfr.Purpose,
		OtherPurpose:      nfr.OtherPurpose,
		FinancingType:     nfr.FinancingType,
		AmountRequested:   nfr.AmountRequested,
		Destination:       nfr.Destination,
		StartDate:         nfr.StartDate,
		EndDate:           nfr.EndDate,
		ConferenceName:    nfr.ConferenceName,
		ConferenceRank:    nfr.ConferenceRank,
		PresentationTitle: nfr.PresentationTitle,
	}
	if err := fr.normalize(); err != nil {
		return FundingRequest{}, err
	}
	return fr, nil
}

type UpdateFundingRequest struct {
	Purpose           *string    `json:"purpose"`
	OtherPurpose      *string    `json:"otherPurpose" validate:"omitempty,max=300"`
	FinancingType     *[]string  `json:"financingType"`
	AmountRequested   *float64   `json:"amountRequested" validate:"omitempty,gt=0"`
	Destination       *string    `json:"destination" validate:"omitempty,min=1,max=200"`
	StartDate         *core.Date `json:"startDate"`
	EndDate           *core.Date `json:"endDate"`
	ConferenceName    *string    `json:"conferenceName" validate:"omitempty,max=300"`
	ConferenceRank    *string    `json:"conferenceRank" validate:"omitempty,max=20"`
	PresentationTitle *string    `json:"presentationTitle" validate:"omitempty,max=300"`
}

func (ufr UpdateFundingRequest) changes() bool {
	return ufr.Purpose != nil || ufr.OtherPurpose != nil || ufr.FinancingType != nil || ufr.AmountRequested != nil ||
		ufr.Destination != nil || ufr.StartDate != nil || ufr.EndDate != nil ||
		ufr.ConferenceName != nil || ufr.ConferenceRank != nil || ufr.PresentationTitle != nil
}

// Validate checks ufr against orig and returns the updated request. A reviewed request cannot change.
func (ufr *UpdateFundingRequest) Validate(orig FundingRequest, validate *validator.Validate) (FundingRequest, error) {
	if ufr.Destination != nil {
		*ufr.Destination = core.CleanString(*ufr.Destination)
	}
	if err := validate.Struct(ufr); err != nil {
		return FundingRequest{}, err
	}
	if orig.Status.IsFinal() && ufr.changes() {
		return FundingRequest{}, core.NewValidationError(ErrAlreadyReviewed, core.FieldError{Field: "status", Error: ErrAlreadyReviewed.Error()})
	}

	fr := orig
	if ufr.Purpose != nil {
		fr.Purpose = *ufr.Purpose
	}
	if ufr.OtherPurpose != nil {
		fr.OtherPurpose = ufr.OtherPurpose
	}
	if ufr.FinancingType != nil {
		fr.FinancingType = *ufr.FinancingType
	}
	if ufr.AmountRequested != nil {
		fr.AmountRequested = *ufr.AmountRequested
	}
	if ufr.Destination != nil {
		fr.Destination = *ufr.Destination
	}
	if ufr.StartDate != nil {
		fr.StartDate = *ufr.StartDate
	}
	if ufr.EndDate != nil {
		fr.EndDate = *ufr.EndDate
	}
	if ufr.ConferenceName != nil {
		fr.ConferenceName = ufr.ConferenceName
	}
	if ufr.ConferenceRank != nil {
		fr.ConferenceRank = ufr.ConferenceRank
	}
	if ufr.PresentationTitle != nil {
		fr.PresentationTitle = ufr.PresentationTitle
	}
	if err := fr.normalize(); err != nil {
		return FundingRequest{}, err
	}
	return fr, nil
}

// Review is an executive decision, approving requires the budget the request is paid from.
type Review struct {
	Status   string `json:"status" validate:"required"`
	BudgetID *int   `json:"budgetId" validate:"omitempty,gt=0"`
	Comment  string `json:"comment" validate:"max=2000"`

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
	if st == core.StatusApproved && r.BudgetID == nil {
		return core.NewFieldError("budgetId", "this field is required")
	}
	r.status = st
	return nil
}

type QueryFilter struct {
	core.PageRequest
	Status  []string `json:"status" query:"status"`
	UserID  int      `json:"userId" query:"userId"`
	Purpose string   `json:"purpose" query:"purpose"`
	// Search does a case-insensitive match on the destination, other purpose and conference name.
	Search   string `json:"search" query:"search"`
	Ordering string `json:"ordering" query:"ordering"`

	Statuses  []core.Status     `json:"-" query:"-"`
	Orderings []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":              "id",
	"status":          "status",
	"purpose":         "purpose",
	"amountRequested": "amount_requested",
	"startDate":       "start_date",
	"createdAt":       "created_at",
}

func (qf *QueryFilter) Clean() error {
	qf.PageRequest.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
	var err error
	if qf.Statuses, err = core.ParseStatuses(qf.Status); err != nil {
		return core.NewFieldError("status", err.Error())
	}
	if qf.Purpose != "" {
		p, ok := ParsePurpose(qf.Purpose)
		if !ok {
			return core.NewFieldError("purpose", "invalid purpose")
		}
		qf.Purpose = p
	}
	return nil
}
