package inmemdb

import (
	"context"

	"github.com/trezcool/investiga/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func cloneUser(usr user.User) user.User {
	if usr.RoleID != nil {
		id := *usr.RoleID
		usr.RoleID = &id
	}
	if usr.LastLogin != nil {
		t := *usr.LastLogin
		usr.LastLogin = &t
	}
	usr.ResearchLines = copyStrings(usr.ResearchLines)
	return usr
}

func (repo *userRepository) checkUniqueness(username, email string, excludedID int) error {
	for _, usr := range repo.db.users {
		if usr.ID == excludedID {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedID int) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, excludedID)
}

func (repo *userRepository) checkRole(roleID *int) error {
	if roleID == nil {
		return nil
	}
	if _, ok := repo.db.roles[*roleID]; !ok {
		return user.ErrInvalidRole
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, 0); err != nil {
		return user.User{}, err
	}
	if err := repo.checkRole(usr.RoleID); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.nextID("users")
	repo.db.users[usr.ID] = cloneUser(usr)
	return cloneUser(usr), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return cloneUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return cloneUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

var userComparators = comparators[user.User]{
	"id":         func(a, b user.User) int { return cmpInt(a.ID, b.ID) },
	"email":      func(a, b user.User) int { return cmpString(a.Email, b.Email) },
	"username":   func(a, b user.User) int { return cmpString(a.Username, b.Username) },
	"names":      func(a, b user.User) int { return cmpString(a.Names, b.Names) },
	"last_name":  func(a, b user.User) int { return cmpString(a.LastName, b.LastName) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func matchesUser(usr user.User, filter user.QueryFilter) bool {
	if filter.Search != "" &&
		!containsFold(usr.Email, filter.Search) && !containsFold(usr.Username, filter.Search) &&
		!containsFold(usr.Names, filter.Search) && !containsFold(usr.LastName, filter.Search) {
		return false
	}
	if filter.RoleID != 0 && (usr.RoleID == nil || *usr.RoleID != filter.RoleID) {
		return false
	}
	if filter.AcademicDegree != "" && !containsFold(usr.AcademicDegree, filter.AcademicDegree) {
		return false
	}
	if filter.ResearchLine != "" {
		found := false
		for _, line := range usr.ResearchLines {
			if containsFold(line, filter.ResearchLine) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if matchesUser(usr, filter) {
			users = append(users, cloneUser(usr))
		}
	}
	sortRows(users, filter.Orderings, userComparators, func(u user.User) int { return u.ID })
	page, total := paginate(users, filter.PageRequest)
	return page, total, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	if err := repo.checkRole(usr.RoleID); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = cloneUser(usr)
	return cloneUser(usr), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, id)

	// ON DELETE SET NULL
	for tid, th := range repo.db.theses {
		if nullRefs(&th.UserID, id) {
			repo.db.theses[tid] = th
		}
	}
	for sid, s := range repo.db.scholarships {
		if nullRefs(&s.UserID, id) {
			repo.db.scholarships[sid] = s
		}
	}
	for fid, fr := range repo.db.funding {
		if nullRefs(&fr.UserID, id) {
			repo.db.funding[fid] = fr
		}
	}
	// ON DELETE CASCADE
	for l := range repo.db.userResearches {
		if l.left == id {
			delete(repo.db.userResearches, l)
		}
	}
	for l := range repo.db.interests {
		if l.right == id {
			delete(repo.db.interests, l)
		}
	}
	return nil
}

