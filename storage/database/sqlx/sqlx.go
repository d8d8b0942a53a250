package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// queryer is implemented by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func get(ctx context.Context, q queryer, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.GetContext(ctx, dest, query, args...)
}

func selectRows(ctx context.Context, q queryer, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.SelectContext(ctx, dest, query, args...)
}

// exec runs b and returns the number of affected rows.
func exec(ctx context.Context, q queryer, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// withTx runs fn in a transaction, committed if fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// notFound maps sql.ErrNoRows to the domain error.
func notFound(err, domainErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return domainErr
	}
	return err
}

// uniqueViolation returns the name of the violated unique constraint, if err is one.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(errors.Cause(err), &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func foreignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(errors.Cause(err), &pqErr) && pqErr.Code == "23503"
}

// checkViolation reports whether err is the violation of a CHECK constraint.
func checkViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(errors.Cause(err), &pqErr) && pqErr.Code == "23514"
}

// page selects one page of the rows of base into dest, returning the count of all of them.
func page(
	ctx context.Context, q queryer, dest interface{}, table string, columns []string,
	where func(sq.SelectBuilder) sq.SelectBuilder, orderings []core.DBOrdering, pr core.PageRequest,
) (int, error) {
	var total int
	if err := get(ctx, q, &total, where(psql.Select("COUNT(*)").From(table))); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	pr.Clean()
	b := where(psql.Select(columns...).From(table)).
		OrderBy(core.OrderByClauses(orderings, "id ASC")...).
		Limit(uint64(pr.PageSize)).
		Offset(uint64(pr.Offset()))
	if err := selectRows(ctx, q, dest, b); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return total, nil
}

func ilike(s string) string {
	return "%" + s + "%"
}
