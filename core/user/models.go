package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
)

type User struct {
	ID             int        `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	Names          string     `json:"names"`
	LastName       string     `json:"lastName"`
	Rut            string     `json:"rut"`
	PhoneNumber    string     `json:"phoneNumber"`
	Gender         string     `json:"gender"`
	AcademicDegree string     `json:"academicDegree"`
	Institution    string     `json:"institution"`
	RoleID         *int       `json:"roleId"`
	ResearchLines  []string   `json:"researchLines"`
	TutorEmail     string     `json:"tutorEmail"`
	TutorName      string     `json:"tutorName"`
	PasswordHash   []byte     `json:"-"`
	LastLogin      *time.Time `json:"lastLogin"` // UTC
	CreatedAt      time.Time  `json:"createdAt"` // UTC
	UpdatedAt      time.Time  `json:"updatedAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsExecutive() bool {
	return role.IsExecutive(u.RoleID)
}

func (u User) IsStudent() bool {
	return role.Is(u.RoleID, role.Student)
}

func (u User) FullName() string {
	return core.CleanString(u.Names + " " + u.LastName)
}

// NewUser contains information needed to create a new User.
// Password is optional, users without one must go through the password reset flow.
type NewUser struct {
	Email           string   `json:"email" validate:"required,email"`
	Username        string   `json:"username" validate:"required,min=3,max=64,alphanum_"`
	Names           string   `json:"names" validate:"required"`
	LastName        string   `json:"lastName"`
	Rut             string   `json:"rut" validate:"omitempty,rut"`
	PhoneNumber     string   `json:"phoneNumber"`
	Gender          string   `json:"gender"`
	AcademicDegree  string   `json:"academicDegree"`
	Institution     string   `json:"institution"`
	RoleID          *int     `json:"roleId"`
	ResearchLines   []string `json:"researchLines"`
	TutorEmail      string   `json:"tutorEmail" validate:"omitempty,email"`
	TutorName       string   `json:"tutorName"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"passwordConfirm" validate:"eqfield=Password"`
}

func (nu *NewUser) clean() {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Names = core.CleanString(nu.Names)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Rut = core.CleanString(nu.Rut)
	nu.PhoneNumber = core.CleanString(nu.PhoneNumber)
	nu.Gender = core.CleanString(nu.Gender)
	nu.AcademicDegree = core.CleanString(nu.AcademicDegree)
	nu.Institution = core.CleanString(nu.Institution)
	nu.ResearchLines = core.CleanStrings(nu.ResearchLines)
	nu.TutorEmail = core.CleanString(nu.TutorEmail, true /* lower */)
	nu.TutorName = core.CleanString(nu.TutorName)
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	if err := svc.checkRole(ctx, nu.RoleID); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username, nu.Email, 0)
}

// UpdateUser defines what information may be provided to modify an existing User.
// nil fields are left untouched.
type UpdateUser struct {
	Email           *string      `json:"email" validate:"omitempty,email"`
	Username        *string      `json:"username" validate:"omitempty,min=3,max=64,alphanum_"`
	Names           *string      `json:"names" validate:"omitempty,min=1"`
	LastName        *string      `json:"lastName"`
	Rut             *string      `json:"rut" validate:"omitempty,rut"`
	PhoneNumber     *string      `json:"phoneNumber"`
	Gender          *string      `json:"gender"`
	AcademicDegree  *string      `json:"academicDegree"`
	Institution     *string      `json:"institution"`
	RoleID          core.NullInt `json:"roleId"`
	ResearchLines   []string     `json:"researchLines"`
	TutorEmail      *string      `json:"tutorEmail" validate:"omitempty,email"`
	TutorName       *string      `json:"tutorName"`
	Password        string       `json:"password"`
	PasswordConfirm string       `json:"passwordConfirm" validate:"eqfield=Password"`
}

func cleanPtr(s *string, lower ...bool) {
	if s != nil {
		*s = core.CleanString(*s, lower...)
	}
}

// TouchesAdminFields reports whether uu changes fields only executives may change.
func (uu UpdateUser) TouchesAdminFields() bool {
	return uu.RoleID.Set || uu.Email != nil || uu.Username != nil
}

func (uu *UpdateUser) Validate(ctx context.Context, orig User, validate *validator.Validate, svc *Service) error {
	cleanPtr(uu.Email, true /* lower */)
	cleanPtr(uu.Username, true /* lower */)
	cleanPtr(uu.Names)
	cleanPtr(uu.LastName)
	cleanPtr(uu.Rut)
	cleanPtr(uu.PhoneNumber)
	cleanPtr(uu.Gender)
	cleanPtr(uu.AcademicDegree)
	cleanPtr(uu.Institution)
	cleanPtr(uu.TutorEmail, true /* lower */)
	cleanPtr(uu.TutorName)
	uu.ResearchLines = core.CleanStrings(uu.ResearchLines)

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.RoleID.Set {
		if err := svc.checkRole(ctx, uu.RoleID.Ptr()); err != nil {
			return err
		}
	}

	uname, email := orig.Username, orig.Email
	if uu.Username != nil {
		uname = *uu.Username
	}
	if uu.Email != nil {
		email = *uu.Email
	}
	return svc.checkUniqueness(ctx, uname, email, orig.ID)
}

// apply merges uu into usr.
func (uu UpdateUser) apply(usr *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&usr.Email, uu.Email)
	set(&usr.Username, uu.Username)
	set(&usr.Names, uu.Names)
	set(&usr.LastName, uu.LastName)
	set(&usr.Rut, uu.Rut)
	set(&usr.PhoneNumber, uu.PhoneNumber)
	set(&usr.Gender, uu.Gender)
	set(&usr.AcademicDegree, uu.AcademicDegree)
	set(&usr.Institution, uu.Institution)
	set(&usr.TutorEmail, uu.TutorEmail)
	set(&usr.TutorName, uu.TutorName)
	if uu.RoleID.Set {
		usr.RoleID = uu.RoleID.Ptr()
	}
	if uu.ResearchLines != nil {
		usr.ResearchLines = uu.ResearchLines
	}
}

type ResetUserPassword struct {
	Token           string `json:"token" validate:"required"`
	UID             string `json:"uid" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single User, the first non-zero field wins.
type GetFilter struct {
	ID              int
	Email           string
	UsernameOrEmail string
}

// QueryFilter is bound from the query string (GET) or the body (POST search).
type QueryFilter struct {
	core.PageRequest
	// Search does a case-insensitive match on one of email, username, names or lastName.
	Search         string `json:"search" query:"search"`
	RoleID         int    `json:"roleId" query:"roleId"`
	AcademicDegree string `json:"academicDegree" query:"academicDegree"`
	ResearchLine   string `json:"researchLine" query:"researchLine"`
	Ordering       string `json:"ordering" query:"ordering"`

	Orderings []core.DBOrdering `json:"-" query:"-"`
}

// OrderingColumns maps the sortable fields to their columns.
var OrderingColumns = map[string]string{
	"id":        "id",
	"email":     "email",
	"username":  "username",
	"names":     "names",
	"lastName":  "last_name",
	"createdAt": "created_at",
}

func (qf *QueryFilter) Clean() {
	qf.PageRequest.Clean()
	qf.Search = core.CleanString(qf.Search)
	qf.AcademicDegree = core.CleanString(qf.AcademicDegree)
	qf.ResearchLine = core.CleanString(qf.ResearchLine)
	qf.Orderings = core.ParseOrdering(qf.Ordering, OrderingColumns)
}
