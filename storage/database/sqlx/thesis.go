package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
)

var thesisColumns = []string{
	"id", "user_id", "title", "status", "start_date", "end_date", "extension", "resources_requested",
	"created_at", "updated_at",
}

type thesisRow struct {
	ID                 int       `db:"id"`
	UserID             null.Int  `db:"user_id"`
	Title              string    `db:"title"`
	Status             string    `db:"status"`
	StartDate          core.Date `db:"start_date"`
	EndDate            core.Date `db:"end_date"`
	Extension          bool      `db:"extension"`
	ResourcesRequested bool      `db:"resources_requested"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r thesisRow) thesis() thesis.Thesis {
	return thesis.Thesis{
		ID:                 r.ID,
		UserID:             r.UserID.Ptr(),
		Title:              r.Title,
		Status:             core.Status(r.Status),
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		Extension:          r.Extension,
		ResourcesRequested: r.ResourcesRequested,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func thesisValues(th thesis.Thesis) map[string]interface{} {
	return map[string]interface{}{
		"user_id":             null.IntFromPtr(th.UserID),
		"title":               th.Title,
		"status":              string(th.Status),
		"start_date":          th.StartDate,
		"end_date":            th.EndDate,
		"extension":           th.Extension,
		"resources_requested": th.ResourcesRequested,
		"created_at":          th.CreatedAt,
		"updated_at":          th.UpdatedAt,
	}
}

type thesisRepository struct {
	db *sqlx.DB
}

func NewThesisRepository(db *sqlx.DB) thesis.Repository {
	return &thesisRepository{db: db}
}

func (repo *thesisRepository) CreateThesis(ctx context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	b := psql.Insert("theses").SetMap(thesisValues(th)).Suffix("RETURNING id")
	if err := get(ctx, repo.db, &th.ID, b); err != nil {
		if foreignKeyViolation(err) {
			return thesis.Thesis{}, user.ErrNotFound
		}
		return thesis.Thesis{}, errors.Wrap(err, "inserting thesis")
	}
	return th, nil
}

func (repo *thesisRepository) GetThesis(ctx context.Context, id int) (thesis.Thesis, error) {
	var r thesisRow
	if err := get(ctx, repo.db, &r, psql.Select(thesisColumns...).From("theses").Where(sq.Eq{"id": id})); err != nil {
		return thesis.Thesis{}, notFound(err, thesis.ErrNotFound)
	}
	return r.thesis(), nil
}

func statusStrings(sts []core.Status) []string {
	ss := make([]string, 0, len(sts))
	for _, st := range sts {
		ss = append(ss, string(st))
	}
	return ss
}

func (repo *thesisRepository) QueryTheses(ctx context.Context, filter thesis.QueryFilter) ([]thesis.Thesis, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(filter.Statuses) > 0 {
			b = b.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
		}
		if filter.UserID != 0 {
			b = b.Where(sq.Eq{"user_id": filter.UserID})
		}
		if filter.Search != "" {
			b = b.Where(sq.ILike{"title": ilike(filter.Search)})
		}
		return b
	}

	var rows []thesisRow
	total, err := page(ctx, repo.db, &rows, "theses", thesisColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying theses")
	}
	theses := make([]thesis.Thesis, 0, len(rows))
	for _, r := range rows {
		theses = append(theses, r.thesis())
	}
	return theses, total, nil
}

func (repo *thesisRepository) UpdateThesis(ctx context.Context, th thesis.Thesis) (thesis.Thesis, error) {
	vals := thesisValues(th)
	delete(vals, "created_at")
	n, err := exec(ctx, repo.db, psql.Update("theses").SetMap(vals).Where(sq.Eq{"id": th.ID}))
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "updating thesis")
	}
	if n == 0 {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	return th, nil
}

func (repo *thesisRepository) DeleteThesis(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("theses").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting thesis")
	}
	if n == 0 {
		return thesis.ErrNotFound
	}
	return nil
}
