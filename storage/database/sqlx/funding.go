package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/funding"
	"github.com/trezcool/investiga/core/user"
)

const fundingFiles fileTable = "funding_request_files"

var fundingColumns = []string{
	"id", "user_id", "purpose", "other_purpose", "financing_type", "amount_requested", "destination",
	"start_date", "end_date", "conference_name", "conference_rank", "presentation_title", "status", "budget_id",
	"created_at", "updated_at",
}

type fundingRow struct {
	ID                int            `db:"id"`
	UserID            null.Int       `db:"user_id"`
	Purpose           string         `db:"purpose"`
	OtherPurpose      null.String    `db:"other_purpose"`
	FinancingType     pq.StringArray `db:"financing_type"`
	AmountRequested   float64        `db:"amount_requested"`
	Destination       string         `db:"destination"`
	StartDate         core.Date      `db:"start_date"`
	EndDate           core.Date      `db:"end_date"`
	ConferenceName    null.String    `db:"conference_name"`
	ConferenceRank    null.String    `db:"conference_rank"`
	PresentationTitle null.String    `db:"presentation_title"`
	Status            string         `db:"status"`
	BudgetID          null.Int       `db:"budget_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r fundingRow) fundingRequest(files []core.File) funding.FundingRequest {
	fr := funding.FundingRequest{
		ID:                r.ID,
		UserID:            r.UserID.Ptr(),
		Purpose:           r.Purpose,
		OtherPurpose:      r.OtherPurpose.Ptr(),
		FinancingType:     []string(r.FinancingType),
		AmountRequested:   r.AmountRequested,
		Destination:       r.Destination,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		ConferenceName:    r.ConferenceName.Ptr(),
		ConferenceRank:    r.ConferenceRank.Ptr(),
		PresentationTitle: r.PresentationTitle.Ptr(),
		Status:            core.Status(r.Status),
		BudgetID:          r.BudgetID.Ptr(),
		Files:             orEmpty(files),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if fr.FinancingType == nil {
		fr.FinancingType = []string{}
	}
	return fr
}

// fundingValues leaves the review fields out, they only move through ReviewFundingRequest.
func fundingValues(fr funding.FundingRequest) map[string]interface{} {
	financing := fr.FinancingType
	if financing == nil {
		financing = []string{}
	}
	return map[string]interface{}{
		"user_id":            null.IntFromPtr(fr.UserID),
		"purpose":            fr.Purpose,
		"other_purpose":      null.StringFromPtr(fr.OtherPurpose),
		"financing_type":     pq.StringArray(financing),
		"amount_requested":   fr.AmountRequested,
		"destination":        fr.Destination,
		"start_date":         fr.StartDate,
		"end_date":           fr.EndDate,
		"conference_name":    null.StringFromPtr(fr.ConferenceName),
		"conference_rank":    null.StringFromPtr(fr.ConferenceRank),
		"presentation_title": null.StringFromPtr(fr.PresentationTitle),
		"created_at":         fr.CreatedAt,
		"updated_at":         fr.UpdatedAt,
	}
}

type fundingRepository struct {
	db *sqlx.DB
}

func NewFundingRepository(db *sqlx.DB) funding.Repository {
	return &fundingRepository{db: db}
}

func (repo *fundingRepository) CreateFundingRequest(ctx context.Context, fr funding.FundingRequest) (funding.FundingRequest, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		vals := fundingValues(fr)
		vals["status"] = string(fr.Status)
		vals["budget_id"] = null.IntFromPtr(fr.BudgetID)
		if err := get(ctx, tx, &fr.ID, psql.Insert("funding_requests").SetMap(vals).Suffix("RETURNING id")); err != nil {
			if foreignKeyViolation(err) {
				return user.ErrNotFound
			}
			return errors.Wrap(err, "inserting funding request")
		}
		return fundingFiles.add(ctx, tx, fr.ID, fr.Files)
	})
	if err != nil {
		return funding.FundingRequest{}, err
	}
	fr.Files = orEmpty(fr.Files)
	return fr, nil
}

func (repo *fundingRepository) getFundingRequest(ctx context.Context, q queryer, id int) (funding.FundingRequest, error) {
	var r fundingRow
	b := psql.Select(fundingColumns...).From("funding_requests").Where(sq.Eq{"id": id})
	if err := get(ctx, q, &r, b); err != nil {
		return funding.FundingRequest{}, notFound(err, funding.ErrNotFound)
	}
	files, err := fundingFiles.load(ctx, q, id)
	if err != nil {
		return funding.FundingRequest{}, err
	}
	return r.fundingRequest(files[id]), nil
}

func (repo *fundingRepository) GetFundingRequest(ctx context.Context, id int) (funding.FundingRequest, error) {
	return repo.getFundingRequest(ctx, repo.db, id)
}

func (repo *fundingRepository) QueryFundingRequests(ctx context.Context, filter funding.QueryFilter) ([]funding.FundingRequest, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if len(filter.Statuses) > 0 {
			b = b.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
		}
		if filter.UserID != 0 {
			b = b.Where(sq.Eq{"user_id": filter.UserID})
		}
		if filter.Purpose != "" {
			b = b.Where(sq.Eq{"purpose": filter.Purpose})
		}
		if filter.Search != "" {
			s := ilike(filter.Search)
			b = b.Where(sq.Or{
				sq.ILike{"destination": s},
				sq.ILike{"other_purpose": s},
				sq.ILike{"conference_name": s},
			})
		}
		return b
	}

	var rows []fundingRow
	total, err := page(ctx, repo.db, &rows, "funding_requests", fundingColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying funding requests")
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	files, err := fundingFiles.load(ctx, repo.db, ids...)
	if err != nil {
		return nil, 0, err
	}
	requests := make([]funding.FundingRequest, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, r.fundingRequest(files[r.ID]))
	}
	return requests, total, nil
}

func (repo *fundingRepository) UpdateFundingRequest(
	ctx context.Context, fr funding.FundingRequest, removed []string, added []core.File,
) (funding.FundingRequest, error) {
	var updated funding.FundingRequest
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		vals := fundingValues(fr)
		delete(vals, "created_at")
		n, err := exec(ctx, tx, psql.Update("funding_requests").SetMap(vals).Where(sq.Eq{"id": fr.ID}))
		if err != nil {
			if foreignKeyViolation(err) {
				return user.ErrNotFound
			}
			return errors.Wrap(err, "updating funding request")
		}
		if n == 0 {
			return funding.ErrNotFound
		}
		if err = fundingFiles.remove(ctx, tx, fr.ID, removed); err != nil {
			return err
		}
		if err = fundingFiles.add(ctx, tx, fr.ID, added); err != nil {
			return err
		}
		updated, err = repo.getFundingRequest(ctx, tx, fr.ID)
		return err
	})
	return updated, err
}

func (repo *fundingRepository) ReviewFundingRequest(ctx context.Context, fr funding.FundingRequest) (funding.FundingRequest, error) {
	b := psql.Update("funding_requests").
		SetMap(map[string]interface{}{
			"status":     string(fr.Status),
			"budget_id":  null.IntFromPtr(fr.BudgetID),
			"updated_at": fr.UpdatedAt,
		}).
		Where(sq.Eq{"id": fr.ID, "status": string(core.StatusPending)})
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return funding.FundingRequest{}, errors.Wrap(err, "reviewing funding request")
	}
	reviewed, err := repo.getFundingRequest(ctx, repo.db, fr.ID)
	if err != nil {
		return funding.FundingRequest{}, err
	}
	if n == 0 {
		return funding.FundingRequest{}, funding.ErrAlreadyReviewed
	}
	return reviewed, nil
}

func (repo *fundingRepository) DeleteFundingRequest(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("funding_requests").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting funding request")
	}
	if n == 0 {
		return funding.ErrNotFound
	}
	return nil
}
