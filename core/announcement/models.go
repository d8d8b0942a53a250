package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

type Announcement struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TargetAudiences []string  `json:"targetAudiences"`
	IsClosed        bool      `json:"isClosed"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Interest is a user's registration to an announcement.
type Interest struct {
	AnnouncementID int       `json:"announcementId"`
	UserID         int       `json:"userId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewAnnouncement struct {
	Title           string   `json:"title" validate:"required,max=300"`
	Description     string   `json:"description" validate:"required"`
	TargetAudiences []string `json:"targetAudiences"`
	IsClosed        bool     `json:"isClosed"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.TargetAudiences = core.CleanStrings(na.TargetAudiences, true /* lower */)
	return validate.Struct(na)
}

type UpdateAnnouncement struct {
	Title           *string   `json:"title" validate:"omitempty,min=1,max=300"`
	Description     *string   `json:"description" validate:"omitempty,min=1"`
	TargetAudiences *[]string `json:"targetAudiences"`
	IsClosed        *bool     `json:"isClosed"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		*ua.Title = core.CleanString(*ua.Title)
	}
	if ua.Description != nil {
		*ua.Description = core.CleanString(*ua.Description)
	}
	if ua.TargetAudiences != nil {
		*ua.TargetAudiences = core.CleanStrings(*ua.TargetAudiences, true /* lower */)
	}
	return validate.Struct(ua)
}

func (ua UpdateAnnouncement) apply(a *Announcement) {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.TargetAudiences != nil {
		a.TargetAudiences = *ua.TargetAudiences
	}
	if ua.IsClosed != nil {
		a.IsClosed = *ua.IsClosed
	}
}

type NewInterest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

func (ni *NewInterest) Validate(validate *validator.Validate) error {
	ni.Message = core.CleanString(ni.Message)
	return validate.Struct(ni)
}

type QueryFilter struct {
	core.PageRequest
	// Audience matches announcements targeting it.
	Audience string        `json:"audience" query:"audience"`
	IsClosed core.NullBool `json:"isClosed" query:"isClosed"`
	// Search does a case-insensitive match on the title and description.
	Search   string `json:"search" query:"search"`
	Ordering string `json:"ordering" query:"ordering"`

	Orderings []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"createdAt": "created_at",
}

func (qf *QueryFilter) Clean() {
	qf.PageRequest.Clean()
	qf.Audience = core.CleanString(qf.Audience, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
}
