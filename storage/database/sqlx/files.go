package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var fileColumns = []string{"id", "parent_id", "name", "content_type", "size", "sha256", "storage_key", "created_at"}

type fileRow struct {
	ID          string    `db:"id"`
	ParentID    int       `db:"parent_id"`
	Name        string    `db:"name"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	SHA256      string    `db:"sha256"`
	StorageKey  string    `db:"storage_key"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r fileRow) file() core.File {
	return core.File{
		ID:          r.ID,
		Name:        r.Name,
		ContentType: r.ContentType,
		Size:        r.Size,
		SHA256:      r.SHA256,
		Key:         r.StorageKey,
		CreatedAt:   r.CreatedAt,
	}
}

// fileTable is a child table holding the files of the rows of a parent table.
type fileTable string

// load returns the files of each of parentIDs.
func (t fileTable) load(ctx context.Context, q queryer, parentIDs ...int) (map[int][]core.File, error) {
	files := make(map[int][]core.File, len(parentIDs))
	if len(parentIDs) == 0 {
		return files, nil
	}
	var rows []fileRow
	b := psql.Select(fileColumns...).From(string(t)).
		Where(sq.Eq{"parent_id": parentIDs}).
		OrderBy("created_at ASC", "id ASC")
	if err := selectRows(ctx, q, &rows, b); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", t)
	}
	for _, r := range rows {
		files[r.ParentID] = append(files[r.ParentID], r.file())
	}
	return files, nil
}

func (t fileTable) add(ctx context.Context, q queryer, parentID int, files []core.File) error {
	if len(files) == 0 {
		return nil
	}
	b := psql.Insert(string(t)).Columns(fileColumns...)
	for _, f := range files {
		b = b.Values(f.ID, parentID, f.Name, f.ContentType, f.Size, f.SHA256, f.Key, f.CreatedAt)
	}
	_, err := exec(ctx, q, b)
	return errors.Wrapf(err, "inserting into %s", t)
}

func (t fileTable) remove(ctx context.Context, q queryer, parentID int, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b := psql.Delete(string(t)).Where(sq.Eq{"parent_id": parentID, "id": ids})
	_, err := exec(ctx, q, b)
	return errors.Wrapf(err, "deleting from %s", t)
}

func orEmpty(files []core.File) []core.File {
	if files == nil {
		return []core.File{}
	}
	return files
}
