package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/user"
)

type announcementRepository struct {
	db *DB
}

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func cloneAnnouncement(a announcement.Announcement) announcement.Announcement {
	a.TargetAudiences = copyStrings(a.TargetAudiences)
	return a
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextID("announcements")
	repo.db.announcements[a.ID] = cloneAnnouncement(a)
	return cloneAnnouncement(a), nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id int) (announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.announcements[id]; ok {
		return cloneAnnouncement(a), nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

var announcementComparators = comparators[announcement.Announcement]{
	"id":         func(a, b announcement.Announcement) int { return cmpInt(a.ID, b.ID) },
	"title":      func(a, b announcement.Announcement) int { return cmpString(a.Title, b.Title) },
	"created_at": func(a, b announcement.Announcement) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func targets(a announcement.Announcement, audience string) bool {
	for _, aud := range a.TargetAudiences {
		if aud == audience {
			return true
		}
	}
	return false
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, filter announcement.QueryFilter) ([]announcement.Announcement, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	anns := make([]announcement.Announcement, 0)
	for _, a := range repo.db.announcements {
		if filter.Audience != "" && !targets(a, filter.Audience) {
			continue
		}
		if filter.IsClosed.Set && a.IsClosed != filter.IsClosed.Bool {
			continue
		}
		if filter.Search != "" && !containsFold(a.Title, filter.Search) && !containsFold(a.Description, filter.Search) {
			continue
		}
		anns = append(anns, cloneAnnouncement(a))
	}
	sortRows(anns, filter.Orderings, announcementComparators, func(a announcement.Announcement) int { return a.ID })
	page, total := paginate(anns, filter.PageRequest)
	return page, total, nil
}

func (repo *announcementRepository) UpdateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[a.ID]; !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	repo.db.announcements[a.ID] = cloneAnnouncement(a)
	return cloneAnnouncement(a), nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[id]; !ok {
		return announcement.ErrNotFound
	}
	delete(repo.db.announcements, id)
	for l := range repo.db.interests {
		if l.left == id {
			delete(repo.db.interests, l)
		}
	}
	return nil
}

func (repo *announcementRepository) AddInterest(_ context.Context, in announcement.Interest) (announcement.Interest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[in.AnnouncementID]; !ok {
		return announcement.Interest{}, announcement.ErrNotFound
	}
	if _, ok := repo.db.users[in.UserID]; !ok {
		return announcement.Interest{}, user.ErrNotFound
	}
	key := link{left: in.AnnouncementID, right: in.UserID}
	if _, ok := repo.db.interests[key]; ok {
		return announcement.Interest{}, announcement.ErrInterestExists
	}
	repo.db.interests[key] = in
	return in, nil
}

func (repo *announcementRepository) ListInterests(_ context.Context, announcementID int) ([]announcement.Interest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ins := make([]announcement.Interest, 0)
	for l, in := range repo.db.interests {
		if l.left == announcementID {
			ins = append(ins, in)
		}
	}
	sort.Slice(ins, func(i, j int) bool {
		if !ins[i].CreatedAt.Equal(ins[j].CreatedAt) {
			return ins[i].CreatedAt.Before(ins[j].CreatedAt)
		}
		return ins[i].UserID < ins[j].UserID
	})
	return ins, nil
}

func (repo *announcementRepository) DeleteInterest(_ context.Context, announcementID, userID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := link{left: announcementID, right: userID}
	if _, ok := repo.db.interests[key]; !ok {
		return announcement.ErrInterestNotFound
	}
	delete(repo.db.interests, key)
	return nil
}
