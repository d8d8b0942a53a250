package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/user"
)

var (
	announcementColumns = []string{"id", "title", "description", "target_audiences", "is_closed", "created_at", "updated_at"}
	interestColumns     = []string{"announcement_id", "user_id", "message", "created_at"}
)

type announcementRow struct {
	ID              int            `db:"id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	TargetAudiences pq.StringArray `db:"target_audiences"`
	IsClosed        bool           `db:"is_closed"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r announcementRow) announcement() announcement.Announcement {
	a := announcement.Announcement{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		TargetAudiences: []string(r.TargetAudiences),
		IsClosed:        r.IsClosed,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if a.TargetAudiences == nil {
		a.TargetAudiences = []string{}
	}
	return a
}

func announcementValues(a announcement.Announcement) map[string]interface{} {
	audiences := a.TargetAudiences
	if audiences == nil {
		audiences = []string{}
	}
	return map[string]interface{}{
		"title":            a.Title,
		"description":      a.Description,
		"target_audiences": pq.StringArray(audiences),
		"is_closed":        a.IsClosed,
		"created_at":       a.CreatedAt,
		"updated_at":       a.UpdatedAt,
	}
}

type announcementRepository struct {
	db *sqlx.DB
}

func NewAnnouncementRepository(db *sqlx.DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	b := psql.Insert("announcements").SetMap(announcementValues(a)).Suffix("RETURNING id")
	if err := get(ctx, repo.db, &a.ID, b); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (repo *announcementRepository) GetAnnouncement(ctx context.Context, id int) (announcement.Announcement, error) {
	var r announcementRow
	b := psql.Select(announcementColumns...).From("announcements").Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &r, b); err != nil {
		return announcement.Announcement{}, notFound(err, announcement.ErrNotFound)
	}
	return r.announcement(), nil
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, filter announcement.QueryFilter) ([]announcement.Announcement, int, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Audience != "" {
			b = b.Where("? = ANY(target_audiences)", filter.Audience)
		}
		if filter.IsClosed.Set {
			b = b.Where(sq.Eq{"is_closed": filter.IsClosed.Bool})
		}
		if filter.Search != "" {
			s := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"title": s}, sq.ILike{"description": s}})
		}
		return b
	}

	var rows []announcementRow
	total, err := page(ctx, repo.db, &rows, "announcements", announcementColumns, where, filter.Orderings, filter.PageRequest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, r := range rows {
		anns = append(anns, r.announcement())
	}
	return anns, total, nil
}

func (repo *announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	vals := announcementValues(a)
	delete(vals, "created_at")
	n, err := exec(ctx, repo.db, psql.Update("announcements").SetMap(vals).Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if n == 0 {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return a, nil
}

// DeleteAnnouncement relies on announcement_interests.announcement_id ON DELETE CASCADE.
func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("announcements").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if n == 0 {
		return announcement.ErrNotFound
	}
	return nil
}

func (repo *announcementRepository) AddInterest(ctx context.Context, in announcement.Interest) (announcement.Interest, error) {
	b := psql.Insert("announcement_interests").Columns(interestColumns...).
		Values(in.AnnouncementID, in.UserID, in.Message, in.CreatedAt)
	if _, err := exec(ctx, repo.db, b); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return announcement.Interest{}, announcement.ErrInterestExists
		}
		if foreignKeyViolation(err) {
			return announcement.Interest{}, user.ErrNotFound
		}
		return announcement.Interest{}, errors.Wrap(err, "inserting interest")
	}
	return in, nil
}

func (repo *announcementRepository) ListInterests(ctx context.Context, announcementID int) ([]announcement.Interest, error) {
	var rows []struct {
		AnnouncementID int       `db:"announcement_id"`
		UserID         int       `db:"user_id"`
		Message        string    `db:"message"`
		CreatedAt      time.Time `db:"created_at"`
	}
	b := psql.Select(interestColumns...).From("announcement_interests").
		Where(sq.Eq{"announcement_id": announcementID}).
		OrderBy("created_at ASC", "user_id ASC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting interests")
	}
	ins := make([]announcement.Interest, 0, len(rows))
	for _, r := range rows {
		ins = append(ins, announcement.Interest(r))
	}
	return ins, nil
}

func (repo *announcementRepository) DeleteInterest(ctx context.Context, announcementID, userID int) error {
	b := psql.Delete("announcement_interests").Where(sq.Eq{"announcement_id": announcementID, "user_id": userID})
	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return errors.Wrap(err, "deleting interest")
	}
	if n == 0 {
		return announcement.ErrInterestNotFound
	}
	return nil
}
