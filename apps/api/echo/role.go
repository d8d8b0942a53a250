package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/role"
)

type roleApi struct {
	svc      *role.Service
	validate *validator.Validate
}

func registerRoleAPI(authed *echo.Group, deps *Deps) {
	api := roleApi{svc: deps.RoleSvc, validate: deps.Validate}

	rg := authed.Group("/roles", executiveOnly)
	rg.POST("", api.create)
	rg.GET("", api.list)

	dg := rg.Group("/:id", objectLoader(api.svc.Get, nil))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
}

func (api *roleApi) create(ctx echo.Context) error {
	var data role.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *roleApi) list(ctx echo.Context) error {
	roles, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing roles")
	}
	if roles == nil {
		roles = []role.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *roleApi) retrieve(ctx echo.Context) error {
	r, err := getObject[role.Role](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

// destroy leaves the users holding the role without role.
func (api *roleApi) destroy(ctx echo.Context) error {
	r, err := getObject[role.Role](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), r.ID); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return ctx.NoContent(http.StatusNoContent)
}
