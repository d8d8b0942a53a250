package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/investiga/core/role"
)

type roleRepository struct {
	db *DB
}

func NewRoleRepository(db *DB) role.Repository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) ScopeExists(_ context.Context, scope string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, r := range repo.db.roles {
		if r.AccountScope == scope {
			return true, nil
		}
	}
	return false, nil
}

func (repo *roleRepository) CreateRole(_ context.Context, r role.Role) (role.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.roles {
		if other.AccountScope == r.AccountScope {
			return role.Role{}, role.ErrScopeExists
		}
	}
	r.ID = repo.db.nextID("roles")
	repo.db.roles[r.ID] = r
	return r, nil
}

func (repo *roleRepository) ListRoles(context.Context) ([]role.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	roles := make([]role.Role, 0, len(repo.db.roles))
	for _, r := range repo.db.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (repo *roleRepository) GetRole(_ context.Context, id int) (role.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.roles[id]; ok {
		return r, nil
	}
	return role.Role{}, role.ErrNotFound
}

func (repo *roleRepository) DeleteRole(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.roles[id]; !ok {
		return role.ErrNotFound
	}
	delete(repo.db.roles, id)
	for uid, usr := range repo.db.users {
		if nullRefs(&usr.RoleID, id) {
			repo.db.users[uid] = usr
		}
	}
	return nil
}
