package inmemdb

import (
	"context"
	"strings"
	"sort"

	"github.com/trezcool/investiga/core/research"
)

type researchRepository struct {
	db *DB
}

func NewResearchRepository(db *DB) research.Repository {
	return &researchRepository{db: db}
}

// withUsers returns a copy of res holding the IDs of its linked users.
func (repo *researchRepository) withUsers(res research.Research) research.Research {
	res.Authors = copyStrings(res.Authors)
	res.UserIDs = make([]int, 0)
	for l := range repo.db.userResearches {
		if l.right == res.ID {
			res.UserIDs = append(res.UserIDs, l.left)
		}
	}
	sort.Ints(res.UserIDs)
	return res
}

func (repo *researchRepository) CreateResearch(_ context.Context, res research.Research) (research.Research, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, uid := range res.UserIDs {
		if _, ok := repo.db.users[uid]; !ok {
			return research.Research{}, research.ErrUserNotFound
		}
	}
	res.ID = repo.db.nextID("researches")
	for _, uid := range res.UserIDs {
		repo.db.userResearches[link{left: uid, right: res.ID}] = struct{}{}
	}
	res.UserIDs = nil
	repo.db.researches[res.ID] = res
	return repo.withUsers(res), nil
}

func (repo *researchRepository) GetResearch(_ context.Context, id int) (research.Research, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if res, ok := repo.db.researches[id]; ok {
		return repo.withUsers(res), nil
	}
	return research.Research{}, research.ErrNotFound
}

func (repo *researchRepository) GetResearchByDOI(_ context.Context, doi string) (research.Research, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, res := range repo.db.researches {
		if doi != "" && strings.EqualFold(res.DOI, doi) {
			return repo.withUsers(res), nil
		}
	}
	return research.Research{}, research.ErrNotFound
}

var researchComparators = comparators[research.Research]{
	"id":         func(a, b research.Research) int { return cmpInt(a.ID, b.ID) },
	"title":      func(a, b research.Research) int { return cmpString(a.Title, b.Title) },
	"year":       func(a, b research.Research) int { return cmpInt(a.Year, b.Year) },
	"venue":      func(a, b research.Research) int { return cmpString(a.Venue, b.Venue) },
	"created_at": func(a, b research.Research) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (repo *researchRepository) QueryResearches(_ context.Context, filter research.QueryFilter) ([]research.Research, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	researches := make([]research.Research, 0)
	for _, res := range repo.db.researches {
		if filter.Search != "" &&
			!containsFold(res.Title, filter.Search) && !containsFold(res.DOI, filter.Search) && !containsFold(res.Venue, filter.Search) {
			continue
		}
		if filter.Year != 0 && res.Year != filter.Year {
			continue
		}
		if filter.UserID != 0 {
			if _, ok := repo.db.userResearches[link{left: filter.UserID, right: res.ID}]; !ok {
				continue
			}
		}
		researches = append(researches, repo.withUsers(res))
	}
	sortRows(researches, filter.Orderings, researchComparators, func(r research.Research) int { return r.ID })
	page, total := paginate(researches, filter.PageRequest)
	return page, total, nil
}

func (repo *researchRepository) UpdateResearch(_ context.Context, res research.Research) (research.Research, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.researches[res.ID]; !ok {
		return research.Research{}, research.ErrNotFound
	}
	res.UserIDs = nil
	res.Authors = copyStrings(res.Authors)
	repo.db.researches[res.ID] = res
	return repo.withUsers(res), nil
}

func (repo *researchRepository) DeleteResearch(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.researches[id]; !ok {
		return research.ErrNotFound
	}
	delete(repo.db.researches, id)
	for l := range repo.db.userResearches {
		if l.right == id {
			delete(repo.db.userResearches, l)
		}
	}
	return nil
}

func (repo *researchRepository) LinkUser(_ context.Context, researchID, userID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.researches[researchID]; !ok {
		return research.ErrNotFound
	}
	if _, ok := repo.db.users[userID]; !ok {
		return research.ErrUserNotFound
	}
	repo.db.userResearches[link{left: userID, right: researchID}] = struct{}{}
	return nil
}

func (repo *researchRepository) UnlinkUser(_ context.Context, researchID, userID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.userResearches, link{left: userID, right: researchID})
	return nil
}
