package role

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var (
	ErrNotFound    = core.NewError(core.KindNotFound, "role not found")
	ErrScopeExists = core.NewError(core.KindBadData, "a role with this account scope already exists")
)

type (
	Repository interface {
		ScopeExists(ctx context.Context, scope string) (bool, error)
		CreateRole(ctx context.Context, r Role) (Role, error)
		ListRoles(ctx context.Context) ([]Role, error)
		GetRole(ctx context.Context, id int) (Role, error)
		// DeleteRole removes the role, users holding it are left without role.
		DeleteRole(ctx context.Context, id int) error
	}

	Service struct {
		repo      Repository
		onChanges []func(ctx context.Context)
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// OnChange registers fn to be called after roles got deleted.
func (svc *Service) OnChange(fn func(ctx context.Context)) {
	svc.onChanges = append(svc.onChanges, fn)
}

func (svc *Service) Create(ctx context.Context, nr NewRole) (Role, error) {
	exists, err := svc.repo.ScopeExists(ctx, nr.AccountScope)
	if err != nil {
		return Role{}, errors.Wrap(err, "checking account scope uniqueness")
	}
	if exists {
		return Role{}, core.NewValidationError(ErrScopeExists, core.FieldError{Field: "accountScope", Error: ErrScopeExists.Error()})
	}
	return svc.repo.CreateRole(ctx, Role{AccountScope: nr.AccountScope})
}

func (svc *Service) List(ctx context.Context) ([]Role, error) {
	return svc.repo.ListRoles(ctx)
}

func (svc *Service) Get(ctx context.Context, id int) (Role, error) {
	return svc.repo.GetRole(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	if err := svc.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	for _, fn := range svc.onChanges {
		fn(ctx)
	}
	return nil
}
