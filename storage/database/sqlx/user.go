package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/investiga/core/user"
)

var userColumns = []string{
	"id", "email", "username", "names", "last_name", "rut", "phone_number", "gender", "academic_degree",
	"institution", "role_id", "research_lines", "tutor_email", "tutor_name", "password_hash", "last_login",
	"created_at", "updated_at",
}

type userRow struct {
	ID             int            `db:"id"`
	Email          string         `db:"email"`
	Username       string         `db:"username"`
	Names          string         `db:"names"`
	LastName       string         `db:"last_name"`
	Rut            string         `db:"rut"`
	PhoneNumber    string         `db:"phone_number"`
	Gender         string         `db:"gender"`
	AcademicDegree string         `db:"academic_degree"`
	Institution    string         `db:"institution"`
	RoleID         null.Int       `db:"role_id"`
	ResearchLines  pq.StringArray `db:"research_lines"`
	TutorEmail     string         `db:"tutor_email"`
	TutorName      string         `db:"tutor_name"`
	PasswordHash   null.Bytes     `db:"password_hash"`
	LastLogin      null.Time      `db:"last_login"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:             r.ID,
		Email:          r.Email,
		Username:       r.Username,
		Names:          r.Names,
		LastName:       r.LastName,
		Rut:            r.Rut,
		PhoneNumber:    r.PhoneNumber,
		Gender:         r.Gender,
		AcademicDegree: r.AcademicDegree,
		Institution:    r.Institution,
		RoleID:         r.RoleID.Ptr(),
		ResearchLines:  []string(r.ResearchLines),
		TutorEmail:     r.TutorEmail,
		TutorName:      r.TutorName,
		LastLogin:      r.LastLogin.Ptr(),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.PasswordHash.Valid {
		usr.PasswordHash = r.PasswordHash.Bytes
	}
	if usr.ResearchLines == nil {
		usr.ResearchLines = []string{}
	}
	return usr
}

func userValues(usr user.User) map[string]interface{} {
	var hash null.Bytes
	if len(usr.PasswordHash) > 0 {
		hash = null.BytesFrom(usr.PasswordHash)
	}
	lines := usr.ResearchLines
	if lines == nil {
		lines = []string{}
	}
	return map[string]interface{}{
		"email":           usr.Email,
		"username":        usr.Username,
		"names":           usr.Names,
		"last_name":       usr.LastName,
		"rut":             usr.Rut,
		"phone_number":    usr.PhoneNumber,
		"gender":          usr.Gender,
		"academic_degree": usr.AcademicDegree,
		"institution":     usr.Institution,
		"role_id":         null.IntFromPtr(usr.RoleID),
		"research_lines":  pq.StringArray(lines),
		"tutor_email":     usr.TutorEmail,
		"tutor_name":      usr.TutorName,
		"password_hash":   hash,
		"last_login":      null.TimeFromPtr(usr.LastLogin),
		"created_at":      usr.CreatedAt,
		"updated_at":      usr.UpdatedAt,
	}
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// mapUserErr maps constraint violations to domain errors.
func mapUserErr(err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	if foreignKeyViolation(err) {
		return user.ErrInvalidRole
	}
	return err
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedID int) error {
	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	b := psql.Select("username", "email").From("users").
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}}).
		Where(sq.NotEq{"id": excludedID}).
		Limit(2)
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	b := psql.Insert("users").SetMap(userValues(usr)).Suffix("RETURNING id")
	if err := get(ctx, repo.db, &usr.ID, b); err != nil {
		return user.User{}, errors.Wrap(mapUserErr(err), "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns...).From("users")
	switch {
	case filter.ID != 0:
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		b = b.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		b = b.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := get(ctx, repo.db, &r, b.Limit(1)); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return r.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			s := ilike(filter.Search)
			b = b.Where(sq.Or{
				sq.ILike{"email": s}, sq.ILike{"username": s}, sq.ILike{"names": s}, sq.ILike{"last_name": s},
			})
		}
		if filter.RoleID != 0 {
			b = b.Where(sq.Eq{"role_id": filter.RoleID})
		}
		if filter.AcademicDegree != "" {
			b = b.Where(sq.ILike{"academic_degree": ilike(filter.AcademicDegree)})
		}
		if filter.ResearchLine != "" {
			b = b.Where("EXISTS (SELECT 1 FROM unnest(research_lines) rl WHERE rl ILIKE ?)", ilike(filter.ResearchLine))
		}
		return b
	}

	var rows []userRow
	total, err := page(ctx, repo.db, &rows, "users", userColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, total, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	vals := userValues(usr)
	delete(vals, "created_at")
	n, err := exec(ctx, repo.db, psql.Update("users").SetMap(vals).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, errors.Wrap(mapUserErr(err), "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// DeleteUser relies on the foreign keys: SET NULL on requests, CASCADE on links and interests.
func (repo *userRepository) DeleteUser(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
