package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
)

var (
	periodColumns = []string{
		"id", "title", "description", "status_application", "start_date", "end_date",
		"total_budget_bachelor", "total_budget_master", "total_budget_doctorate",
		"used_budget_bachelor", "used_budget_master", "used_budget_doctorate",
		"created_at", "updated_at",
	}

	// budgetSuffixes whitelists the column suffix of each degree.
	budgetSuffixes = map[core.Degree]string{
		core.DegreeBachelor:  "bachelor",
		core.DegreeMaster:    "master",
		core.DegreeDoctorate: "doctorate",
	}
)

type periodRow struct {
	ID                   int       `db:"id"`
	Title                string    `db:"title"`
	Description          string    `db:"description"`
	StatusApplication    string    `db:"status_application"`
	StartDate            core.Date `db:"start_date"`
	EndDate              core.Date `db:"end_date"`
	TotalBudgetBachelor  float64   `db:"total_budget_bachelor"`
	TotalBudgetMaster    float64   `db:"total_budget_master"`
	TotalBudgetDoctorate float64   `db:"total_budget_doctorate"`
	UsedBudgetBachelor   float64   `db:"used_budget_bachelor"`
	UsedBudgetMaster     float64   `db:"used_budget_master"`
	UsedBudgetDoctorate  float64   `db:"used_budget_doctorate"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r periodRow) period() period.ApplicationPeriod {
	return period.ApplicationPeriod{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		StatusApplication: period.ApplicationStatus(r.StatusApplication),
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		TotalBudget: core.Budget{
			BachelorDegree: r.TotalBudgetBachelor,
			MasterDegree:   r.TotalBudgetMaster,
			Doctorate:      r.TotalBudgetDoctorate,
		},
		UsedBudget: core.Budget{
			BachelorDegree: r.UsedBudgetBachelor,
			MasterDegree:   r.UsedBudgetMaster,
			Doctorate:      r.UsedBudgetDoctorate,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// periodValues leaves the used budget out, it only moves through ConsumeBudget.
func periodValues(p period.ApplicationPeriod) map[string]interface{} {
	return map[string]interface{}{
		"title":                  p.Title,
		"description":            p.Description,
		"status_application":     string(p.StatusApplication),
		"start_date":             p.StartDate,
		"end_date":               p.EndDate,
		"total_budget_bachelor":  p.TotalBudget.BachelorDegree,
		"total_budget_master":    p.TotalBudget.MasterDegree,
		"total_budget_doctorate": p.TotalBudget.Doctorate,
		"created_at":             p.CreatedAt,
		"updated_at":             p.UpdatedAt,
	}
}

type periodRepository struct {
	db *sqlx.DB
}

func NewPeriodRepository(db *sqlx.DB) period.Repository {
	return &periodRepository{db: db}
}

func (repo *periodRepository) TitleExists(ctx context.Context, title string, excludedID int) (bool, error) {
	var exists bool
	b := psql.Select().Column(
		sq.Expr("EXISTS (?)", psql.Select("1").From("application_periods").
			Where(sq.Expr("lower(title) = lower(?)", title)).
			Where(sq.NotEq{"id": excludedID})),
	)
	err := get(ctx, repo.db, &exists, b)
	return exists, errors.Wrap(err, "checking period title")
}

func (repo *periodRepository) CreatePeriod(ctx context.Context, p period.ApplicationPeriod) (period.ApplicationPeriod, error) {
	b := psql.Insert("application_periods").SetMap(periodValues(p)).Suffix("RETURNING id")
	if err := get(ctx, repo.db, &p.ID, b); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return period.ApplicationPeriod{}, period.ErrTitleExists
		}
		return period.ApplicationPeriod{}, errors.Wrap(err, "inserting application period")
	}
	p.UsedBudget = core.Budget{}
	return p, nil
}

func (repo *periodRepository) getPeriod(ctx context.Context, q queryer, id int) (period.ApplicationPeriod, error) {
	var r periodRow
	b := psql.Select(periodColumns...).From("application_periods").Where(sq.Eq{"id": id})
	if err := get(ctx, q, &r, b); err != nil {
		return period.ApplicationPeriod{}, notFound(err, period.ErrNotFound)
	}
	return r.period(), nil
}

func (repo *periodRepository) GetPeriod(ctx context.Context, id int) (period.ApplicationPeriod, error) {
	return repo.getPeriod(ctx, repo.db, id)
}

func (repo *periodRepository) QueryPeriods(ctx context.Context, filter period.QueryFilter) ([]period.ApplicationPeriod, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			s := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"title": s}, sq.ILike{"description": s}})
		}
		if filter.Status != "" {
			b = b.Where(sq.Eq{"status_application": string(filter.Status)})
		}
		return b
	}

	var rows []periodRow
	total, err := page(ctx, repo.db, &rows, "application_periods", periodColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying application periods")
	}
	periods := make([]period.ApplicationPeriod, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.period())
	}
	return periods, total, nil
}

func (repo *periodRepository) UpdatePeriod(ctx context.Context, p period.ApplicationPeriod) (period.ApplicationPeriod, error) {
	vals := periodValues(p)
	delete(vals, "created_at")
	b := psql.Update("application_periods").SetMap(vals).Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING used_budget_bachelor, used_budget_master, used_budget_doctorate")
	var used struct {
		Bachelor  float64 `db:"used_budget_bachelor"`
		Master    float64 `db:"used_budget_master"`
		Doctorate float64 `db:"used_budget_doctorate"`
	}
	if err := get(ctx, repo.db, &used, b); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return period.ApplicationPeriod{}, period.ErrTitleExists
		}
		// the dates are validated before, a failing check is a used budget granted meanwhile
		if checkViolation(err) {
			return period.ApplicationPeriod{}, period.ErrBelowUsed
		}
		return period.ApplicationPeriod{}, notFound(err, period.ErrNotFound)
	}
	p.UsedBudget = core.Budget{BachelorDegree: used.Bachelor, MasterDegree: used.Master, Doctorate: used.Doctorate}
	return p, nil
}

// DeletePeriod relies on scholarships.period_id ON DELETE SET NULL.
func (repo *periodRepository) DeletePeriod(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("application_periods").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting application period")
	}
	if n == 0 {
		return period.ErrNotFound
	}
	return nil
}

// consume increments the used budget of d with a conditional update, so that concurrent
// consumers can never overdraw it.
func (repo *periodRepository) consume(ctx context.Context, q queryer, id int, d core.Degree, amt float64) (period.ApplicationPeriod, error) {
	suffix, ok := budgetSuffixes[d]
	if !ok {
		return period.ApplicationPeriod{}, period.ErrInvalidDegree
	}
	used, total := "used_budget_"+suffix, "total_budget_"+suffix

	b := psql.Update("application_periods").
		Set(used, sq.Expr(used+" + ?", amt)).
		Where(sq.Eq{"id": id}).
		Where(sq.Expr(used+" + ? BETWEEN 0 AND "+total, amt))
	n, err := exec(ctx, q, b)
	if err != nil {
		return period.ApplicationPeriod{}, errors.Wrap(err, "consuming budget")
	}
	if n == 0 {
		if _, err = repo.getPeriod(ctx, q, id); err != nil {
			return period.ApplicationPeriod{}, err
		}
		return period.ApplicationPeriod{}, period.ErrBudgetExceeded
	}
	return repo.getPeriod(ctx, q, id)
}

func (repo *periodRepository) ConsumeBudget(ctx context.Context, id int, d core.Degree, amt float64) (period.ApplicationPeriod, error) {
	return repo.consume(ctx, repo.db, id, d, amt)
}
