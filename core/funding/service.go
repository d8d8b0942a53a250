package funding

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/user"
)

var (
	ErrNotFound        = core.NewError(core.KindNotFound, "funding request not found")
	ErrAlreadyReviewed = core.NewError(core.KindConflict, "the funding request was already reviewed")
	ErrNoStatus        = core.NewError(core.KindBadData, "review has no status")
)

type (
	Repository interface {
		// CreateFundingRequest stores fr together with its Files.
		CreateFundingRequest(ctx context.Context, fr FundingRequest) (FundingRequest, error)
		GetFundingRequest(ctx context.Context, id int) (FundingRequest, error)
		QueryFundingRequests(ctx context.Context, filter QueryFilter) ([]FundingRequest, int, error)
		// UpdateFundingRequest saves the fields of fr, drops the removed files and adds the added ones
		// in a single transaction.
		UpdateFundingRequest(ctx context.Context, fr FundingRequest, removed []string, added []core.File) (FundingRequest, error)
		// ReviewFundingRequest saves the decision of a pending request, failing with ErrAlreadyReviewed
		// if it is not pending anymore.
		ReviewFundingRequest(ctx context.Context, fr FundingRequest) (FundingRequest, error)
		DeleteFundingRequest(ctx context.Context, id int) error
	}

	Users interface {
		Get(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   Users
		storage core.FileStorage
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, users Users, storage core.FileStorage, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, storage: storage, mailSvc: mailSvc, logger: logger}
}

func filePrefix(id int) string {
	return fmt.Sprintf("funding/%d", id)
}

// Create stores fr (as returned by NewFundingRequest.Validate) for ownerID, with its uploads.
func (svc *Service) Create(ctx context.Context, ownerID int, fr FundingRequest, uploads []core.Upload) (FundingRequest, error) {
	files, err := core.StoreUploads(ctx, svc.storage, fmt.Sprintf("funding/u%d", ownerID), uploads)
	if err != nil {
		return FundingRequest{}, err
	}

	now := time.Now().UTC()
	fr.ID = 0
	fr.UserID = &ownerID
	fr.Status = core.StatusPending
	fr.BudgetID = nil
	fr.Files = files
	fr.CreatedAt, fr.UpdatedAt = now, now

	fr, err = svc.repo.CreateFundingRequest(ctx, fr)
	if err != nil {
		core.DiscardFiles(ctx, svc.storage, files, svc.logger)
		return FundingRequest{}, errors.Wrap(err, "creating funding request")
	}
	return fr, nil
}

func (svc *Service) Get(ctx context.Context, id int) (FundingRequest, error) {
	return svc.repo.GetFundingRequest(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	frs, total, err := svc.repo.QueryFundingRequests(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying funding requests")
	}
	if frs == nil {
		frs = []FundingRequest{}
	}
	return core.NewPage(frs, total, filter.PageRequest), nil
}

// Update saves fr (as returned by UpdateFundingRequest.Validate) and the file changes, all or nothing.
func (svc *Service) Update(ctx context.Context, fr FundingRequest, fc core.FileChanges) (FundingRequest, error) {
	fr.UpdatedAt = time.Now().UTC()

	var updated FundingRequest
	err := core.UpdateFiles(ctx, svc.storage, svc.logger, filePrefix(fr.ID), fr.Files, fc,
		func(removed []string, added []core.File) error {
			var err error
			updated, err = svc.repo.UpdateFundingRequest(ctx, fr, removed, added)
			return errors.Wrap(err, "updating funding request")
		})
	if err != nil {
		return FundingRequest{}, err
	}
	return updated, nil
}

func (svc *Service) AddFiles(ctx context.Context, fr FundingRequest, uploads []core.Upload) (FundingRequest, error) {
	return svc.Update(ctx, fr, core.FileChanges{Add: uploads})
}

func (svc *Service) RemoveFile(ctx context.Context, fr FundingRequest, fileID string) (FundingRequest, error) {
	if _, err := core.FindFile(fr.Files, fileID); err != nil {
		return FundingRequest{}, err
	}
	return svc.Update(ctx, fr, core.FileChanges{Remove: []string{fileID}})
}

func (svc *Service) FileURL(ctx context.Context, fr FundingRequest, fileID string) (string, error) {
	f, err := core.FindFile(fr.Files, fileID)
	if err != nil {
		return "", err
	}
	return svc.storage.SignedURL(ctx, f.Key, f.Name)
}

// Review decides on a pending request, only approvals keep a budgetId.
func (svc *Service) Review(ctx context.Context, orig FundingRequest, r Review) (FundingRequest, error) {
	if r.status == "" {
		return FundingRequest{}, ErrNoStatus
	}
	if orig.Status != core.StatusPending {
		return FundingRequest{}, ErrAlreadyReviewed
	}

	fr := orig
	fr.Status = r.status
	fr.BudgetID = nil
	if r.status == core.StatusApproved {
		fr.BudgetID = r.BudgetID
	}
	fr.UpdatedAt = time.Now().UTC()

	fr, err := svc.repo.ReviewFundingRequest(ctx, fr)
	if err != nil {
		return FundingRequest{}, errors.Wrap(err, "reviewing funding request")
	}
	svc.notify(ctx, fr, r.Comment)
	return fr, nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	fr, err := svc.repo.GetFundingRequest(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteFundingRequest(ctx, id); err != nil {
		return errors.Wrap(err, "deleting funding request")
	}
	core.DiscardFiles(ctx, svc.storage, fr.Files, svc.logger)
	return nil
}

func (svc *Service) notify(ctx context.Context, fr FundingRequest, comment string) {
	if fr.UserID == nil {
		return
	}
	usr, err := svc.users.Get(ctx, *fr.UserID)
	if err != nil {
		svc.logger.Warn("could not find funding request owner to notify", err, map[string]interface{}{"fundingRequest": fr.ID})
		return
	}
	svc.mailSvc.SendMessages(core.NewDecisionMessage(
		mail.Address{Name: usr.FullName(), Address: usr.Email},
		fmt.Sprintf("Solicitud de financiamiento #%d", fr.ID),
		fr.Status,
		comment,
		fmt.Sprintf("/funding-requests/%d", fr.ID),
	))
}
