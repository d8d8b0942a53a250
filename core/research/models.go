package research

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
)

// Research is a publication, linked to any number of users.
type Research struct {
	ID        int       `json:"id"`
	DOI       string    `json:"doi"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Authors   []string  `json:"authors"`
	FirstPage int       `json:"firstPage"`
	LastPage  int       `json:"lastPage"`
	Venue     string    `json:"venue"`
	Link      string    `json:"link"`
	PDF       string    `json:"pdf"`
	UserIDs   []int     `json:"userIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NewResearch struct {
	DOI       string   `json:"doi" validate:"max=255"`
	Title     string   `json:"title" validate:"required,max=500"`
	Year      int      `json:"year" validate:"required,gte=1900,lte=2200"`
	Month     int      `json:"month" validate:"omitempty,gte=1,lte=12"`
	Authors   []string `json:"authors"`
	FirstPage int      `json:"firstPage" validate:"gte=0"`
	LastPage  int      `json:"lastPage" validate:"omitempty,gtefield=FirstPage"`
	Venue     string   `json:"venue"`
	Link      string   `json:"link" validate:"omitempty,url"`
	PDF       string   `json:"pdf" validate:"omitempty,url"`
	// UserIDs are linked to the new research.
	UserIDs []int `json:"userIds"`
}

func (nr *NewResearch) Validate(validate *validator.Validate) error {
	nr.DOI = core.CleanString(nr.DOI, true /* lower */)
	nr.Title = core.CleanString(nr.Title)
	nr.Venue = core.CleanString(nr.Venue)
	nr.Link = core.CleanString(nr.Link)
	nr.PDF = core.CleanString(nr.PDF)
	nr.Authors = core.CleanStrings(nr.Authors)
	return validate.Struct(nr)
}

type UpdateResearch struct {
	DOI       *string   `json:"doi" validate:"omitempty,max=255"`
	Title     *string   `json:"title" validate:"omitempty,min=1,max=500"`
	Year      *int      `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	Month     *int      `json:"month" validate:"omitempty,gte=0,lte=12"`
	Authors   *[]string `json:"authors"`
	FirstPage *int      `json:"firstPage" validate:"omitempty,gte=0"`
	LastPage  *int      `json:"lastPage" validate:"omitempty,gte=0"`
	Venue     *string   `json:"venue"`
	Link      *string   `json:"link" validate:"omitempty,url"`
	PDF       *string   `json:"pdf" validate:"omitempty,url"`
}

func (ur *UpdateResearch) Validate(orig Research, validate *validator.Validate) error {
	cleanPtr(ur.DOI, true)
	cleanPtr(ur.Title, false)
	cleanPtr(ur.Venue, false)
	cleanPtr(ur.Link, false)
	cleanPtr(ur.PDF, false)
	if ur.Authors != nil {
		*ur.Authors = core.CleanStrings(*ur.Authors)
	}
	if err := validate.Struct(ur); err != nil {
		return err
	}

	res := orig
	ur.apply(&res)
	if res.LastPage != 0 && res.LastPage < res.FirstPage {
		return core.NewFieldError("lastPage", "lastPage must not be before firstPage")
	}
	return nil
}

func cleanPtr(s *string, lower bool) {
	if s != nil {
		*s = core.CleanString(*s, lower)
	}
}

func (ur UpdateResearch) apply(res *Research) {
	if ur.DOI != nil {
		res.DOI = *ur.DOI
	}
	if ur.Title != nil {
		res.Title = *ur.Title
	}
	if ur.Year != nil {
		res.Year = *ur.Year
	}
	if ur.Month != nil {
		res.Month = *ur.Month
	}
	if ur.Authors != nil {
		res.Authors = *ur.Authors
	}
	if ur.FirstPage != nil {
		res.FirstPage = *ur.FirstPage
	}
	if ur.LastPage != nil {
		res.LastPage = *ur.LastPage
	}
	if ur.Venue != nil {
		res.Venue = *ur.Venue
	}
	if ur.Link != nil {
		res.Link = *ur.Link
	}
	if ur.PDF != nil {
		res.PDF = *ur.PDF
	}
}

type QueryFilter struct {
	core.PageRequest
	// Search does a case-insensitive match on the title, doi and venue.
	Search   string `json:"search" query:"search"`
	Year     int    `json:"year" query:"year"`
	UserID   int    `json:"userId" query:"userId"`
	Ordering string `json:"ordering" query:"ordering"`

	Orderings []core.DBOrdering `json:"-" query:"-"`
}

var OrderingColumns = map[string]string{
	"id":        "id",
	"title":     "title",
	"year":      "year",
	"venue":     "venue",
	"createdAt": "created_at",
}

func (qf *QueryFilter) Clean() {
	qf.PageRequest.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
}
