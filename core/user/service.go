package user

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
)

var (
	// errors
	ErrNotFound       = core.NewError(core.KindNotFound, "user not found")
	ErrEmailExists    = core.NewError(core.KindBadData, "a user with this email already exists")
	ErrUsernameExists = core.NewError(core.KindBadData, "a user with this username already exists")
	ErrInvalidRole    = core.NewError(core.KindBadData, "role does not exist")
	ErrInvalidCreds   = core.NewError(core.KindBadData, "invalid credentials")

	roleLookupTTL = time.Minute
	roleGenKey    = "user:role:gen"
	noRole        = "null"
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user other than excludedID.
		CheckUniqueness(ctx context.Context, username, email string, excludedID int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers returns one page of the users matching filter and the count of all of them.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser removes the user, their theses, scholarships and funding requests are kept without owner.
		DeleteUser(ctx context.Context, id int) error
	}

	Service struct {
		repo     Repository
		roles    role.Repository
		cache    core.Cache
		mailSvc  core.EmailService
		conf     *core.Config
		tokenGen tokenGenerator
	}
)

func NewService(repo Repository, roles role.Repository, cache core.Cache, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		roles:   roles,
		cache:   cache,
		mailSvc: mailSvc,
		conf:    conf,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   3 * 24 * time.Hour,
		},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedID int) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *Service) checkRole(ctx context.Context, roleID *int) error {
	if roleID == nil {
		return nil
	}
	if _, err := svc.roles.GetRole(ctx, *roleID); err != nil {
		if errors.Cause(err) == role.ErrNotFound {
			return core.NewValidationError(ErrInvalidRole, core.FieldError{Field: "roleId", Error: ErrInvalidRole.Error()})
		}
		return errors.Wrap(err, "finding role")
	}
	return nil
}

// Create stores a validated NewUser.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Email:          nu.Email,
		Username:       nu.Username,
		Names:          nu.Names,
		LastName:       nu.LastName,
		Rut:            nu.Rut,
		PhoneNumber:    nu.PhoneNumber,
		Gender:         nu.Gender,
		AcademicDegree: nu.AcademicDegree,
		Institution:    nu.Institution,
		RoleID:         nu.RoleID,
		ResearchLines:  nu.ResearchLines,
		TutorEmail:     nu.TutorEmail,
		TutorName:      nu.TutorName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if usr.ResearchLines == nil {
		usr.ResearchLines = []string{}
	}
	if nu.Password != "" {
		if err := usr.SetPassword(nu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.forgetRole(ctx, usr.Email)
	return usr, nil
}

func (svc *Service) Get(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) roleKey(ctx context.Context, email string) string {
	gen, err := svc.cache.Get(ctx, roleGenKey)
	if err != nil {
		gen = "0"
	}
	return fmt.Sprintf("user:role:%s:%s", gen, email)
}

// RoleByEmail returns the role ID of the user with the given email, nil if they have no role.
// Lookups are cached for a minute.
func (svc *Service) RoleByEmail(ctx context.Context, email string) (*int, error) {
	email = core.CleanString(email, true /* lower */)
	key := svc.roleKey(ctx, email)

	if val, err := svc.cache.Get(ctx, key); err == nil {
		if val == noRole {
			return nil, nil
		}
		if id, err := strconv.Atoi(val); err == nil {
			return &id, nil
		}
	}

	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	val := noRole
	if usr.RoleID != nil {
		val = strconv.Itoa(*usr.RoleID)
	}
	_ = svc.cache.Set(ctx, key, val, roleLookupTTL)
	return usr.RoleID, nil
}

func (svc *Service) forgetRole(ctx context.Context, email string) {
	_ = svc.cache.Delete(ctx, svc.roleKey(ctx, email))
}

// InvalidateRoleLookups drops every cached role lookup.
func (svc *Service) InvalidateRoleLookups(ctx context.Context) {
	_ = svc.cache.Set(ctx, roleGenKey, strconv.FormatInt(time.Now().UnixNano(), 36), 0)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	users, total, err := svc.repo.QueryUsers(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []User{}
	}
	return core.NewPage(users, total, filter.PageRequest), nil
}

// Update applies a validated UpdateUser to orig.
func (svc *Service) Update(ctx context.Context, orig User, uu UpdateUser) (User, error) {
	usr := orig
	uu.apply(&usr)
	usr.UpdatedAt = time.Now().UTC()
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	svc.forgetRole(ctx, orig.Email)
	svc.forgetRole(ctx, usr.Email)
	return usr, nil
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	usr, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteUser(ctx, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	svc.forgetRole(ctx, usr.Email)
	return nil
}

// Authenticate checks the credentials of the user with the given username or email.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCreds
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCreds
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// RequestPasswordReset mails a password reset link to the user with the given email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), svc.tokenGen.makeToken(usr))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject: "Restablecer contraseña",
		BodyStr: "Para definir una nueva contraseña visita:\n" + link,
	})
	return nil
}

// ResetPassword sets a new password with a token sent by RequestPasswordReset.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return err
	}
	if err = svc.tokenGen.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	_, err = svc.SetPassword(ctx, usr, rp.Password)
	return err
}
