package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/research"
)

var researchColumns = []string{
	"id", "doi", "title", "year", "month", "authors", "first_page", "last_page", "venue", "link", "pdf",
	"created_at", "updated_at",
}

type researchRow struct {
	ID        int            `db:"id"`
	DOI       string         `db:"doi"`
	Title     string         `db:"title"`
	Year      int            `db:"year"`
	Month     int            `db:"month"`
	Authors   pq.StringArray `db:"authors"`
	FirstPage int            `db:"first_page"`
	LastPage  int            `db:"last_page"`
	Venue     string         `db:"venue"`
	Link      string         `db:"link"`
	PDF       string         `db:"pdf"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r researchRow) research(userIDs []int) research.Research {
	res := research.Research{
		ID:        r.ID,
		DOI:       r.DOI,
		Title:     r.Title,
		Year:      r.Year,
		Month:     r.Month,
		Authors:   []string(r.Authors),
		FirstPage: r.FirstPage,
		LastPage:  r.LastPage,
		Venue:     r.Venue,
		Link:      r.Link,
		PDF:       r.PDF,
		UserIDs:   userIDs,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if res.Authors == nil {
		res.Authors = []string{}
	}
	if res.UserIDs == nil {
		res.UserIDs = []int{}
	}
	return res
}

func researchValues(res research.Research) map[string]interface{} {
	authors := res.Authors
	if authors == nil {
		authors = []string{}
	}
	return map[string]interface{}{
		"doi":        res.DOI,
		"title":      res.Title,
		"year":       res.Year,
		"month":      res.Month,
		"authors":    pq.StringArray(authors),
		"first_page": res.FirstPage,
		"last_page":  res.LastPage,
		"venue":      res.Venue,
		"link":       res.Link,
		"pdf":        res.PDF,
		"created_at": res.CreatedAt,
		"updated_at": res.UpdatedAt,
	}
}

type researchRepository struct {
	db *sqlx.DB
}

func NewResearchRepository(db *sqlx.DB) research.Repository {
	return &researchRepository{db: db}
}

// userIDs returns the linked users of each of researchIDs.
func (repo *researchRepository) userIDs(ctx context.Context, q queryer, researchIDs ...int) (map[int][]int, error) {
	links := make(map[int][]int, len(researchIDs))
	if len(researchIDs) == 0 {
		return links, nil
	}
	var rows []struct {
		UserID     int `db:"user_id"`
		ResearchID int `db:"research_id"`
	}
	b := psql.Select("user_id", "research_id").From("user_researches").
		Where(sq.Eq{"research_id": researchIDs}).
		OrderBy("user_id")
	if err := selectRows(ctx, q, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting user researches")
	}
	for _, r := range rows {
		links[r.ResearchID] = append(links[r.ResearchID], r.UserID)
	}
	return links, nil
}

func (repo *researchRepository) CreateResearch(ctx context.Context, res research.Research) (research.Research, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		b := psql.Insert("researches").SetMap(researchValues(res)).Suffix("RETURNING id")
		if err := get(ctx, tx, &res.ID, b); err != nil {
			return errors.Wrap(err, "inserting research")
		}
		if len(res.UserIDs) == 0 {
			return nil
		}
		ib := psql.Insert("user_researches").Columns("user_id", "research_id")
		for _, uid := range res.UserIDs {
			ib = ib.Values(uid, res.ID)
		}
		if _, err := exec(ctx, tx, ib); err != nil {
			if foreignKeyViolation(err) {
				return research.ErrUserNotFound
			}
			return errors.Wrap(err, "linking users")
		}
		return nil
	})
	if err != nil {
		return research.Research{}, err
	}
	if res.UserIDs == nil {
		res.UserIDs = []int{}
	}
	return res, nil
}

func (repo *researchRepository) GetResearch(ctx context.Context, id int) (research.Research, error) {
	var r researchRow
	if err := get(ctx, repo.db, &r, psql.Select(researchColumns...).From("researches").Where(sq.Eq{"id": id})); err != nil {
		return research.Research{}, notFound(err, research.ErrNotFound)
	}
	links, err := repo.userIDs(ctx, repo.db, id)
	if err != nil {
		return research.Research{}, err
	}
	return r.research(links[id]), nil
}

func (repo *researchRepository) GetResearchByDOI(ctx context.Context, doi string) (research.Research, error) {
	var r researchRow
	b := psql.Select(researchColumns...).From("researches").Where("lower(doi) = lower(?)", doi).Limit(1)
	if err := get(ctx, repo.db, &r, b); err != nil {
		return research.Research{}, notFound(err, research.ErrNotFound)
	}
	links, err := repo.userIDs(ctx, repo.db, r.ID)
	if err != nil {
		return research.Research{}, err
	}
	return r.research(links[r.ID]), nil
}

func (repo *researchRepository) QueryResearches(ctx context.Context, filter research.QueryFilter) ([]research.Research, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			s := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"title": s}, sq.ILike{"doi": s}, sq.ILike{"venue": s}})
		}
		if filter.Year != 0 {
			b = b.Where(sq.Eq{"year": filter.Year})
		}
		if filter.UserID != 0 {
			b = b.Where("id IN (SELECT research_id FROM user_researches WHERE user_id = ?)", filter.UserID)
		}
		return b
	}

	var rows []researchRow
	total, err := page(ctx, repo.db, &rows, "researches", researchColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying researches")
	}
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	links, err := repo.userIDs(ctx, repo.db, ids...)
	if err != nil {
		return nil, 0, err
	}
	researches := make([]research.Research, 0, len(rows))
	for _, r := range rows {
		researches = append(researches, r.research(links[r.ID]))
	}
	return researches, total, nil
}

func (repo *researchRepository) UpdateResearch(ctx context.Context, res research.Research) (research.Research, error) {
	vals := researchValues(res)
	delete(vals, "created_at")
	n, err := exec(ctx, repo.db, psql.Update("researches").SetMap(vals).Where(sq.Eq{"id": res.ID}))
	if err != nil {
		return research.Research{}, errors.Wrap(err, "updating research")
	}
	if n == 0 {
		return research.Research{}, research.ErrNotFound
	}
	return res, nil
}

// DeleteResearch relies on user_researches.research_id ON DELETE CASCADE.
func (repo *researchRepository) DeleteResearch(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("researches").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting research")
	}
	if n == 0 {
		return research.ErrNotFound
	}
	return nil
}

func (repo *researchRepository) LinkUser(ctx context.Context, researchID, userID int) error {
	b := psql.Insert("user_researches").Columns("user_id", "research_id").Values(userID, researchID).
		Suffix("ON CONFLICT DO NOTHING")
	if _, err := exec(ctx, repo.db, b); err != nil {
		if foreignKeyViolation(err) {
			return research.ErrUserNotFound
		}
		return errors.Wrap(err, "linking user")
	}
	return nil
}

func (repo *researchRepository) UnlinkUser(ctx context.Context, researchID, userID int) error {
	_, err := exec(ctx, repo.db, psql.Delete("user_researches").Where(sq.Eq{"user_id": userID, "research_id": researchID}))
	return errors.Wrap(err, "unlinking user")
}
