package scholarship

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/user"
)

var (
	ErrNotFound        = core.NewError(core.KindNotFound, "scholarship not found")
	ErrAlreadyReviewed = core.NewError(core.KindConflict, "the scholarship was already reviewed")
	ErrPeriodClosed    = core.NewError(core.KindBadData, "the application period is not open")
	ErrNoPeriod        = core.NewError(core.KindBadData, "the scholarship has no application period")
	ErrNoStatus        = core.NewError(core.KindBadData, "review has no status")
)

type (
	Repository interface {
		// CreateScholarship stores s together with its Files.
		CreateScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		GetScholarship(ctx context.Context, id int) (Scholarship, error)
		QueryScholarships(ctx context.Context, filter QueryFilter) ([]Scholarship, int, error)
		// UpdateScholarship saves the fields of s, drops the removed files and adds the added ones
		// in a single transaction.
		UpdateScholarship(ctx context.Context, s Scholarship, removed []string, added []core.File) (Scholarship, error)
		// ReviewScholarship saves the decision of a pending scholarship, failing with ErrAlreadyReviewed
		// if it is not pending anymore. When approved, AmountGranted is consumed from the budget
		// of its period in the same transaction (period.ErrBudgetExceeded if not available).
		ReviewScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		// TutorReviewScholarship only saves StatusTutor, it is never written by UpdateScholarship.
		TutorReviewScholarship(ctx context.Context, s Scholarship) (Scholarship, error)
		DeleteScholarship(ctx context.Context, id int) error
	}

	// Users finds the owners of the scholarships to notify.
	Users interface {
		Get(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo    Repository
		periods period.Repository
		users   Users
		storage core.FileStorage
		mailSvc core.EmailService
		logger  core.Logger
		now     func() time.Time
	}
)

func NewService(
	repo Repository, periods period.Repository, users Users,
	storage core.FileStorage, mailSvc core.EmailService, logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		periods: periods,
		users:   users,
		storage: storage,
		mailSvc: mailSvc,
		logger:  logger,
		now:     time.Now,
	}
}

func filePrefix(id int) string {
	return fmt.Sprintf("scholarships/%d", id)
}

// Create stores a validated NewScholarship of ownerID, with its uploads, in an open period.
func (svc *Service) Create(ctx context.Context, ownerID int, ns NewScholarship, uploads []core.Upload) (Scholarship, error) {
	p, err := svc.periods.GetPeriod(ctx, ns.PeriodID)
	if err != nil {
		if errors.Cause(err) == period.ErrNotFound {
			return Scholarship{}, core.NewValidationError(err, core.FieldError{Field: "periodId", Error: err.Error()})
		}
		return Scholarship{}, errors.Wrap(err, "finding application period")
	}
	if !p.IsOpen(svc.now()) {
		return Scholarship{}, core.NewValidationError(ErrPeriodClosed, core.FieldError{Field: "periodId", Error: ErrPeriodClosed.Error()})
	}

	files, err := core.StoreUploads(ctx, svc.storage, fmt.Sprintf("scholarships/u%d", ownerID), uploads)
	if err != nil {
		return Scholarship{}, err
	}

	now := svc.now().UTC()
	periodID := p.ID
	s, err := svc.repo.CreateScholarship(ctx, Scholarship{
		UserID:          &ownerID,
		PeriodID:        &periodID,
		DegreeLevel:     ns.DegreeLevel,
		Status:          core.StatusPending,
		StatusTutor:     core.StatusPending,
		AmountRequested: ns.AmountRequested,
		BankName:        ns.BankName,
		AccountType:     ns.AccountType,
		AccountNumber:   ns.AccountNumber,
		Files:           files,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		core.DiscardFiles(ctx, svc.storage, files, svc.logger)
		return Scholarship{}, errors.Wrap(err, "creating scholarship")
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Scholarship, error) {
	return svc.repo.GetScholarship(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) (core.Page, error) {
	schs, total, err := svc.repo.QueryScholarships(ctx, filter)
	if err != nil {
		return core.Page{}, errors.Wrap(err, "querying scholarships")
	}
	if schs == nil {
		schs = []Scholarship{}
	}
	return core.NewPage(schs, total, filter.PageRequest), nil
}

// Update applies a validated UpdateScholarship and the file changes to orig, all or nothing.
func (svc *Service) Update(ctx context.Context, orig Scholarship, us UpdateScholarship, fc core.FileChanges) (Scholarship, error) {
	s := orig
	us.apply(&s)
	s.UpdatedAt = svc.now().UTC()

	var updated Scholarship
	err := core.UpdateFiles(ctx, svc.storage, svc.logger, filePrefix(orig.ID), orig.Files, fc,
		func(removed []string, added []core.File) error {
			var err error
			updated, err = svc.repo.UpdateScholarship(ctx, s, removed, added)
			return errors.Wrap(err, "updating scholarship")
		})
	if err != nil {
		return Scholarship{}, err
	}
	return updated, nil
}

// AddFiles attaches uploads to s.
func (svc *Service) AddFiles(ctx context.Context, s Scholarship, uploads []core.Upload) (Scholarship, error) {
	return svc.Update(ctx, s, UpdateScholarship{}, core.FileChanges{Add: uploads})
}

// RemoveFile detaches the file fileID from s.
func (svc *Service) RemoveFile(ctx context.Context, s Scholarship, fileID string) (Scholarship, error) {
	if _, err := core.FindFile(s.Files, fileID); err != nil {
		return Scholarship{}, err
	}
	return svc.Update(ctx, s, UpdateScholarship{}, core.FileChanges{Remove: []string{fileID}})
}

// FileURL returns a signed download URL of the file fileID of s.
func (svc *Service) FileURL(ctx context.Context, s Scholarship, fileID string) (string, error) {
	f, err := core.FindFile(s.Files, fileID)
	if err != nil {
		return "", err
	}
	return svc.storage.SignedURL(ctx, f.Key, f.Name)
}

// Review decides on a pending scholarship. Approving consumes the granted amount from the period budget.
func (svc *Service) Review(ctx context.Context, orig Scholarship, r Review) (Scholarship, error) {
	if r.status == "" {
		return Scholarship{}, ErrNoStatus
	}
	if orig.Status != core.StatusPending {
		return Scholarship{}, ErrAlreadyReviewed
	}

	s := orig
	s.Status = r.status
	s.UpdatedAt = svc.now().UTC()
	if r.status == core.StatusApproved {
		if s.PeriodID == nil {
			return Scholarship{}, core.NewValidationError(ErrNoPeriod, core.FieldError{Field: "periodId", Error: ErrNoPeriod.Error()})
		}
		s.AmountGranted = s.AmountRequested
		if r.AmountGranted != nil {
			s.AmountGranted = *r.AmountGranted
		}
	} else {
		s.AmountGranted = 0
	}

	s, err := svc.repo.ReviewScholarship(ctx, s)
	if err != nil {
		if errors.Cause(err) == period.ErrBudgetExceeded {
			return Scholarship{}, core.NewValidationError(err, core.FieldError{Field: "amountGranted", Error: period.ErrBudgetExceeded.Error()})
		}
		return Scholarship{}, errors.Wrap(err, "reviewing scholarship")
	}
	svc.notify(ctx, s, r.Comment)
	return s, nil
}

// TutorReview sets the tutor status, independently of the executive decision.
func (svc *Service) TutorReview(ctx context.Context, orig Scholarship, r TutorReview) (Scholarship, error) {
	if r.status == "" {
		return Scholarship{}, ErrNoStatus
	}
	s := orig
	s.StatusTutor = r.status
	s.UpdatedAt = svc.now().UTC()
	s, err := svc.repo.TutorReviewScholarship(ctx, s)
	return s, errors.Wrap(err, "reviewing scholarship as tutor")
}

// Delete removes the scholarship and the contents of its files.
func (svc *Service) Delete(ctx context.Context, id int) error {
	s, err := svc.repo.GetScholarship(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteScholarship(ctx, id); err != nil {
		return errors.Wrap(err, "deleting scholarship")
	}
	core.DiscardFiles(ctx, svc.storage, s.Files, svc.logger)
	return nil
}

func (svc *Service) notify(ctx context.Context, s Scholarship, comment string) {
	if s.UserID == nil {
		return
	}
	usr, err := svc.users.Get(ctx, *s.UserID)
	if err != nil {
		svc.logger.Warn("could not find scholarship owner to notify", err, map[string]interface{}{"scholarship": s.ID})
		return
	}
	svc.mailSvc.SendMessages(core.NewDecisionMessage(
		mail.Address{Name: usr.FullName(), Address: usr.Email},
		fmt.Sprintf("Beca #%d", s.ID),
		s.Status,
		comment,
		fmt.Sprintf("/scholarships/%d", s.ID),
	))
}
