package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/scholarship"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func periodRows(used float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(periodColumns).AddRow(
		1, "Beca 2025", "", "Abierto", now, now.AddDate(0, 1, 0),
		1000.0, 5000.0, 10000.0,
		0.0, used, 0.0,
		now, now,
	)
}

func scholarshipRows(status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(scholarshipColumns).AddRow(
		7, 3, 1, "MasterDegree", status, "Pending", 2000.0, 2000.0,
		"", "", "", now, now,
	)
}

var consumeQuery = regexp.QuoteMeta(
	"UPDATE application_periods SET used_budget_master = used_budget_master + $1 " +
		"WHERE id = $2 AND used_budget_master + $3 BETWEEN 0 AND total_budget_master",
)

func TestPeriodRepository_ConsumeBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("consumed", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(consumeQuery).WithArgs(500.0, 1, 500.0).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM application_periods WHERE id = \$1`).WithArgs(1).WillReturnRows(periodRows(500))

		p, err := NewPeriodRepository(db).ConsumeBudget(ctx, 1, core.DegreeMaster, 500)
		require.NoError(t, err)
		assert.Equal(t, 500.0, p.UsedBudget.MasterDegree)
		assert.Equal(t, 4500.0, p.Available(core.DegreeMaster))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exceeded", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(consumeQuery).WithArgs(6000.0, 1, 6000.0).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM application_periods WHERE id = \$1`).WithArgs(1).WillReturnRows(periodRows(0))

		_, err := NewPeriodRepository(db).ConsumeBudget(ctx, 1, core.DegreeMaster, 6000)
		assert.Equal(t, period.ErrBudgetExceeded, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(consumeQuery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM application_periods WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(periodColumns))

		_, err := NewPeriodRepository(db).ConsumeBudget(ctx, 1, core.DegreeMaster, 10)
		assert.Equal(t, period.ErrNotFound, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown degree", func(t *testing.T) {
		db, mock := newMock(t)
		_, err := NewPeriodRepository(db).ConsumeBudget(ctx, 1, core.Degree("Postdoc"), 10)
		assert.Equal(t, period.ErrInvalidDegree, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPeriodRepository_UpdatePeriod(t *testing.T) {
	ctx := context.Background()
	p := period.ApplicationPeriod{ID: 1, Title: "Beca 2025", StatusApplication: period.Open, TotalBudget: core.Budget{MasterDegree: 100}}
	update := `UPDATE application_periods SET .+ WHERE id = \$\d+ RETURNING used_budget_bachelor, used_budget_master, used_budget_doctorate`

	t.Run("below used budget", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(update).WillReturnError(&pq.Error{Code: "23514", Constraint: "application_periods_check2"})

		_, err := NewPeriodRepository(db).UpdatePeriod(ctx, p)
		assert.Equal(t, period.ErrBelowUsed, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("title taken", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(update).WillReturnError(&pq.Error{Code: "23505", Constraint: "application_periods_title_key"})

		_, err := NewPeriodRepository(db).UpdatePeriod(ctx, p)
		assert.Equal(t, period.ErrTitleExists, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScholarshipRepository_ReviewScholarship(t *testing.T) {
	ctx := context.Background()
	approved := scholarship.Scholarship{ID: 7, Status: core.StatusApproved, AmountGranted: 2000, UpdatedAt: time.Now()}

	t.Run("approval consumes the budget", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE scholarships SET .+ WHERE id = \$4 AND status = \$5`).
			WithArgs(2000.0, "Approved", sqlmock.AnyArg(), 7, "Pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM scholarships WHERE id = \$1`).WillReturnRows(scholarshipRows("Approved"))
		mock.ExpectQuery(`SELECT .+ FROM scholarship_files`).WillReturnRows(sqlmock.NewRows(fileColumns))
		mock.ExpectExec(consumeQuery).WithArgs(2000.0, 1, 2000.0).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM application_periods WHERE id = \$1`).WillReturnRows(periodRows(2000))
		mock.ExpectCommit()

		s, err := NewScholarshipRepository(db).ReviewScholarship(ctx, approved)
		require.NoError(t, err)
		assert.Equal(t, core.StatusApproved, s.Status)
		assert.Equal(t, []core.File{}, s.Files)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("budget exceeded rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE scholarships SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM scholarships WHERE id = \$1`).WillReturnRows(scholarshipRows("Approved"))
		mock.ExpectQuery(`SELECT .+ FROM scholarship_files`).WillReturnRows(sqlmock.NewRows(fileColumns))
		mock.ExpectExec(consumeQuery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM application_periods WHERE id = \$1`).WillReturnRows(periodRows(4000))
		mock.ExpectRollback()

		_, err := NewScholarshipRepository(db).ReviewScholarship(ctx, approved)
		assert.Equal(t, period.ErrBudgetExceeded, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already reviewed", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE scholarships SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM scholarships WHERE id = \$1`).WillReturnRows(scholarshipRows("Rejected"))
		mock.ExpectQuery(`SELECT .+ FROM scholarship_files`).WillReturnRows(sqlmock.NewRows(fileColumns))
		mock.ExpectRollback()

		_, err := NewScholarshipRepository(db).ReviewScholarship(ctx, approved)
		assert.Equal(t, scholarship.ErrAlreadyReviewed, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScholarshipRepository_TutorStatus(t *testing.T) {
	ctx := context.Background()
	s := scholarship.Scholarship{ID: 7, DegreeLevel: core.DegreeMaster, StatusTutor: core.StatusApproved, UpdatedAt: time.Now()}

	t.Run("update leaves it out", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE scholarships SET account_number = \$1, account_type = \$2, amount_requested = \$3, bank_name = \$4, ` +
			`degree_level = \$5, period_id = \$6, updated_at = \$7, user_id = \$8 WHERE id = \$9`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM scholarships WHERE id = \$1`).WillReturnRows(scholarshipRows("Pending"))
		mock.ExpectQuery(`SELECT .+ FROM scholarship_files`).WillReturnRows(sqlmock.NewRows(fileColumns))
		mock.ExpectCommit()

		_, err := NewScholarshipRepository(db).UpdateScholarship(ctx, s, nil, nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tutor review writes it alone", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`UPDATE scholarships SET status_tutor = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs("Approved", sqlmock.AnyArg(), 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM scholarships WHERE id = \$1`).WillReturnRows(scholarshipRows("Pending"))
		mock.ExpectQuery(`SELECT .+ FROM scholarship_files`).WillReturnRows(sqlmock.NewRows(fileColumns))

		_, err := NewScholarshipRepository(db).TutorReviewScholarship(ctx, s)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestResearchRepository_GetResearchByDOI(t *testing.T) {
	ctx := context.Background()
	byDOI := `SELECT .+ FROM researches WHERE lower\(doi\) = lower\(\$1\) LIMIT 1`

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery(byDOI).WithArgs("10.1000/Suelos").
			WillReturnRows(sqlmock.NewRows(researchColumns).AddRow(4, "10.1000/suelos", "Suelos", 2021, 0, "{Ines}", 0, 0, "", "", "", now, now))
		mock.ExpectQuery(`SELECT user_id, research_id FROM user_researches WHERE research_id IN \(\$1\)`).WithArgs(4).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "research_id"}).AddRow(2, 4))

		res, err := NewResearchRepository(db).GetResearchByDOI(ctx, "10.1000/Suelos")
		require.NoError(t, err)
		assert.Equal(t, 4, res.ID)
		assert.Equal(t, []int{2}, res.UserIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(byDOI).WillReturnRows(sqlmock.NewRows(researchColumns))

		_, err := NewResearchRepository(db).GetResearchByDOI(ctx, "10.1000/nada")
		assert.Equal(t, research.ErrNotFound, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAnnouncementRepository_AddInterest(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO announcement_interests`).
		WithArgs(2, 3, "me interesa", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "announcement_interests_pkey"})

	in := announcement.Interest{AnnouncementID: 2, UserID: 3, Message: "me interesa", CreatedAt: time.Now()}
	_, err := NewAnnouncementRepository(db).AddInterest(context.Background(), in)
	assert.Equal(t, announcement.ErrInterestExists, errors.Cause(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
