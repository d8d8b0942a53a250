package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/user"
)

const scholarshipFiles fileTable = "scholarship_files"

var scholarshipColumns = []string{
	"id", "user_id", "period_id", "degree_level", "status", "status_tutor", "amount_requested", "amount_granted",
	"bank_name", "account_type", "account_number", "created_at", "updated_at",
}

type scholarshipRow struct {
	ID              int       `db:"id"`
	UserID          null.Int  `db:"user_id"`
	PeriodID        null.Int  `db:"period_id"`
	DegreeLevel     string    `db:"degree_level"`
	Status          string    `db:"status"`
	StatusTutor     string    `db:"status_tutor"`
	AmountRequested float64   `db:"amount_requested"`
	AmountGranted   float64   `db:"amount_granted"`
	BankName        string    `db:"bank_name"`
	AccountType     string    `db:"account_type"`
	AccountNumber   string    `db:"account_number"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r scholarshipRow) scholarship(files []core.File) scholarship.Scholarship {
	return scholarship.Scholarship{
		ID:              r.ID,
		UserID:          r.UserID.Ptr(),
		PeriodID:        r.PeriodID.Ptr(),
		DegreeLevel:     core.Degree(r.DegreeLevel),
		Status:          core.Status(r.Status),
		StatusTutor:     core.Status(r.StatusTutor),
		AmountRequested: r.AmountRequested,
		AmountGranted:   r.AmountGranted,
		BankName:        r.BankName,
		AccountType:     r.AccountType,
		AccountNumber:   r.AccountNumber,
		Files:           orEmpty(files),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// scholarshipValues leaves the review fields out, they only move through ReviewScholarship and TutorReviewScholarship.
func scholarshipValues(s scholarship.Scholarship) map[string]interface{} {
	return map[string]interface{}{
		"user_id":          null.IntFromPtr(s.UserID),
		"period_id":        null.IntFromPtr(s.PeriodID),
		"degree_level":     string(s.DegreeLevel),
		"amount_requested": s.AmountRequested,
		"bank_name":        s.BankName,
		"account_type":     s.AccountType,
		"account_number":   s.AccountNumber,
		"created_at":       s.CreatedAt,
		"updated_at":       s.UpdatedAt,
	}
}

type scholarshipRepository struct {
	db      *sqlx.DB
	periods *periodRepository
}

func NewScholarshipRepository(db *sqlx.DB) scholarship.Repository {
	return &scholarshipRepository{db: db, periods: &periodRepository{db: db}}
}

func mapScholarshipRefErr(err error, s scholarship.Scholarship) error {
	if !foreignKeyViolation(err) {
		return err
	}
	if s.PeriodID != nil {
		return core.NewValidationError(period.ErrNotFound, core.FieldError{Field: "periodId", Error: period.ErrNotFound.Error()})
	}
	return user.ErrNotFound
}

func (repo *scholarshipRepository) CreateScholarship(ctx context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		vals := scholarshipValues(s)
		vals["status"] = string(s.Status)
		vals["amount_granted"] = s.AmountGranted
		vals["status_tutor"] = string(s.StatusTutor)
		if err := get(ctx, tx, &s.ID, psql.Insert("scholarships").SetMap(vals).Suffix("RETURNING id")); err != nil {
			return errors.Wrap(mapScholarshipRefErr(err, s), "inserting scholarship")
		}
		return scholarshipFiles.add(ctx, tx, s.ID, s.Files)
	})
	if err != nil {
		return scholarship.Scholarship{}, err
	}
	s.Files = orEmpty(s.Files)
	return s, nil
}

func (repo *scholarshipRepository) getScholarship(ctx context.Context, q queryer, id int) (scholarship.Scholarship, error) {
	var r scholarshipRow
	b := psql.Select(scholarshipColumns...).From("scholarships").Where(sq.Eq{"id": id})
	if err := get(ctx, q, &r, b); err != nil {
		return scholarship.Scholarship{}, notFound(err, scholarship.ErrNotFound)
	}
	files, err := scholarshipFiles.load(ctx, q, id)
	if err != nil {
		return scholarship.Scholarship{}, err
	}
	return r.scholarship(files[id]), nil
}

func (repo *scholarshipRepository) GetScholarship(ctx context.Context, id int) (scholarship.Scholarship, error) {
	return repo.getScholarship(ctx, repo.db, id)
}

func (repo *scholarshipRepository) QueryScholarships(ctx context.Context, filter scholarship.QueryFilter) ([]scholarship.Scholarship, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(filter.Statuses) > 0 {
			b = b.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
		}
		if len(filter.TutorStatuses) > 0 {
			b = b.Where(sq.Eq{"status_tutor": statusStrings(filter.TutorStatuses)})
		}
		if filter.PeriodID != 0 {
			b = b.Where(sq.Eq{"period_id": filter.PeriodID})
		}
		if filter.UserID != 0 {
			b = b.Where(sq.Eq{"user_id": filter.UserID})
		}
		if filter.DegreeLevel != "" {
			b = b.Where(sq.Eq{"degree_level": string(filter.DegreeLevel)})
		}
		return b
	}

	var rows []scholarshipRow
	total, err := page(ctx, repo.db, &rows, "scholarships", scholarshipColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying scholarships")
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	files, err := scholarshipFiles.load(ctx, repo.db, ids...)
	if err != nil {
		return nil, 0, err
	}
	scholarships := make([]scholarship.Scholarship, 0, len(rows))
	for _, r := range rows {
		scholarships = append(scholarships, r.scholarship(files[r.ID]))
	}
	return scholarships, total, nil
}

func (repo *scholarshipRepository) UpdateScholarship(
	ctx context.Context, s scholarship.Scholarship, removed []string, added []core.File,
) (scholarship.Scholarship, error) {
	var updated scholarship.Scholarship
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		vals := scholarshipValues(s)
		delete(vals, "created_at")
		n, err := exec(ctx, tx, psql.Update("scholarships").SetMap(vals).Where(sq.Eq{"id": s.ID}))
		if err != nil {
			return errors.Wrap(mapScholarshipRefErr(err, s), "updating scholarship")
		}
		if n == 0 {
			return scholarship.ErrNotFound
		}
		if err = scholarshipFiles.remove(ctx, tx, s.ID, removed); err != nil {
			return err
		}
		if err = scholarshipFiles.add(ctx, tx, s.ID, added); err != nil {
			return err
		}
		updated, err = repo.getScholarship(ctx, tx, s.ID)
		return err
	})
	return updated, err
}

func (repo *scholarshipRepository) ReviewScholarship(ctx context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	var reviewed scholarship.Scholarship
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		b := psql.Update("scholarships").
			SetMap(map[string]interface{}{
				"status":         string(s.Status),
				"amount_granted": s.AmountGranted,
				"updated_at":     s.UpdatedAt,
			}).
			Where(sq.Eq{"id": s.ID, "status": string(core.StatusPending)})
		n, err := exec(ctx, tx, b)
		if err != nil {
			return errors.Wrap(err, "reviewing scholarship")
		}
		if n == 0 {
			if _, err = repo.getScholarship(ctx, tx, s.ID); err != nil {
				return err
			}
			return scholarship.ErrAlreadyReviewed
		}

		if reviewed, err = repo.getScholarship(ctx, tx, s.ID); err != nil {
			return err
		}
		if reviewed.Status != core.StatusApproved {
			return nil
		}
		if reviewed.PeriodID == nil {
			return scholarship.ErrNoPeriod
		}
		_, err = repo.periods.consume(ctx, tx, *reviewed.PeriodID, reviewed.DegreeLevel, reviewed.AmountGranted)
		return err
	})
	if err != nil {
		return scholarship.Scholarship{}, err
	}
	return reviewed, nil
}

func (repo *scholarshipRepository) TutorReviewScholarship(ctx context.Context, s scholarship.Scholarship) (scholarship.Scholarship, error) {
	b := psql.Update("scholarships").
		SetMap(map[string]interface{}{
			"status_tutor": string(s.StatusTutor),
			"updated_at":   s.UpdatedAt,
		}).
		Where(sq.Eq{"id": s.ID})
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return scholarship.Scholarship{}, errors.Wrap(err, "reviewing scholarship as tutor")
	}
	if n == 0 {
		return scholarship.Scholarship{}, scholarship.ErrNotFound
	}
	return repo.getScholarship(ctx, repo.db, s.ID)
}

func (repo *scholarshipRepository) DeleteScholarship(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("scholarships").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting scholarship")
	}
	if n == 0 {
		return scholarship.ErrNotFound
	}
	return nil
}
