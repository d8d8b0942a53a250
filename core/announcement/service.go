package announcement

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var (
	ErrNotFound         = core.NewError(core.KindNotFound, "announcement not found")
	ErrClosed           = core.NewError(core.KindBadData, "the announcement is closed")
	ErrInterestExists   = core.NewError(core.KindConflict, "interest already registered")
	ErrInterestNotFound = core.NewError(core.KindNotFound, "interest not found")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		GetAnnouncement(ctx context.Context, id int) (Announcement, error)
		QueryAnnouncements(ctx context.Context, filter QueryFilter) ([]Announcement, int, error)
		UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		// DeleteAnnouncement removes the announcement and its interests.
		DeleteAnnouncement(ctx context.Context, id int) error
		// AddInterest fails with ErrInterestExists when the user already registered.
		AddInterest(ctx context.Context, in Interest) (Interest, error)
		ListInterests(ctx context.Context, announcementID int) ([]Interest, error)
		DeleteInterest(ctx context.Context, announcementID, userID int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	now := time.Now().UTC()
	a := Announcement{
		Title:           na.Title,
		Description:     na.Description,
		TargetAudiences: na.TargetAudiences,
		IsClosed:        na.IsClosed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if a.TargetAudiences == nil {
		a.TargetAudiences = []string{}
	}
	a, err := svc.repo.CreateAnnouncement(ctx, a)
	return a, errors.Wrap(err, "creating announcement")
}

func (svc *Service) Get(ctx context.Context, id int) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	anns, total, err := svc.repo.QueryAnnouncements(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []Announcement{}
	}
	return core.NewPage(anns, total, filter.PageRequest), nil
}

// Update applies ua to orig, closing or reopening it through IsClosed.
func (svc *Service) Update(ctx context.Context, orig Announcement, ua UpdateAnnouncement) (Announcement, error) {
	a := orig
	ua.apply(&a)
	a.UpdatedAt = time.Now().UTC()
	a, err := svc.repo.UpdateAnnouncement(ctx, a)
	return a, errors.Wrap(err, "updating announcement")
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}

// RegisterInterest registers userID to an open announcement.
func (svc *Service) RegisterInterest(ctx context.Context, announcementID, userID int, ni NewInterest) (Interest, error) {
	a, err := svc.repo.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return Interest{}, err
	}
	if a.IsClosed {
		return Interest{}, core.NewValidationError(ErrClosed, core.FieldError{Field: "announcementId", Error: ErrClosed.Error()})
	}
	return svc.repo.AddInterest(ctx, Interest{
		AnnouncementID: a.ID,
		UserID:         userID,
		Message:        ni.Message,
		CreatedAt:      time.Now().UTC(),
	})
}

func (svc *Service) ListInterests(ctx context.Context, announcementID int) ([]Interest, error) {
	if _, err := svc.repo.GetAnnouncement(ctx, announcementID); err != nil {
		return nil, err
	}
	ins, err := svc.repo.ListInterests(ctx, announcementID)
	if err != nil {
		return nil, errors.Wrap(err, "listing interests")
	}
	if ins == nil {
		ins = []Interest{}
	}
	return ins, nil
}

func (svc *Service) WithdrawInterest(ctx context.Context, announcementID, userID int) error {
	return svc.repo.DeleteInterest(ctx, announcementID, userID)
}
