package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/role"
)

type roleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) role.Repository {
	return &roleRepository{db: db}
}

type roleRow struct {
	ID           int    `db:"id"`
	AccountScope string `db:"account_scope"`
}

func (repo *roleRepository) ScopeExists(ctx context.Context, scope string) (bool, error) {
	var exists bool
	err := get(ctx, repo.db, &exists, psql.Select().Column("EXISTS (SELECT 1 FROM roles WHERE account_scope = ?)", scope))
	return exists, errors.Wrap(err, "checking account scope")
}

func (repo *roleRepository) CreateRole(ctx context.Context, r role.Role) (role.Role, error) {
	b := psql.Insert("roles").Columns("account_scope").Values(r.AccountScope).Suffix("RETURNING id")
	if err := get(ctx, repo.db, &r.ID, b); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return role.Role{}, role.ErrScopeExists
		}
		return role.Role{}, errors.Wrap(err, "inserting role")
	}
	return r, nil
}

func (repo *roleRepository) ListRoles(ctx context.Context) ([]role.Role, error) {
	var rows []roleRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select("id", "account_scope").From("roles").OrderBy("id")); err != nil {
		return nil, errors.Wrap(err, "selecting roles")
	}
	roles := make([]role.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, role.Role{ID: r.ID, AccountScope: r.AccountScope})
	}
	return roles, nil
}

func (repo *roleRepository) GetRole(ctx context.Context, id int) (role.Role, error) {
	var r roleRow
	err := get(ctx, repo.db, &r, psql.Select("id", "account_scope").From("roles").Where(sq.Eq{"id": id}))
	if err != nil {
		return role.Role{}, notFound(err, role.ErrNotFound)
	}
	return role.Role{ID: r.ID, AccountScope: r.AccountScope}, nil
}

// DeleteRole relies on users.role_id ON DELETE SET NULL.
func (repo *roleRepository) DeleteRole(ctx context.Context, id int) error {
	n, err := exec(ctx, repo.db, psql.Delete("roles").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting role")
	}
	if n == 0 {
		return role.ErrNotFound
	}
	return nil
}
