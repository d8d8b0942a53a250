package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/user"
)

type userApi struct {
	svc         *user.Service
	researchSvc *research.Service
	validate    *validator.Validate
}

func registerUserAPI(v1, authed *echo.Group, deps *Deps) {
	api := userApi{
		svc:         deps.UserSvc,
		researchSvc: deps.ResearchSvc,
		validate:    deps.Validate,
	}

	// un-authed endpoints
	v1.GET("/users/role", api.roleByEmail)

	ug := authed.Group("/users")
	ug.POST("", api.create, executiveOnly)
	ug.GET("", api.query, executiveOnly)
	ug.POST("/search", api.query, executiveOnly)

	// detail endpoints
	dg := ug.Group("/:id", objectLoader(api.svc.Get, func(usr user.User, uid int) bool { return usr.ID == uid }))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.GET("/research", api.listResearch)
}

// Handlers

func (api *userApi) roleByEmail(ctx echo.Context) error {
	email := ctx.QueryParam("email")
	if err := api.validate.Var(email, "required,email"); err != nil {
		return core.NewFieldError("email", "a valid email is required")
	}
	roleID, err := api.svc.RoleByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return err
		}
		return errors.Wrap(err, "looking up role")
	}
	return ctx.JSON(http.StatusOK, RoleLookupResponse{RoleID: roleID})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	filter.Clean()

	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := getObject[user.User](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := getObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	// `RoleID`, `Username` and `Email` can only be changed by executives
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsExecutive() && data.TouchesAdminFields() {
		return errForbidden
	}

	reqCtx := ctx.Request().Context()
	if err = data.Validate(reqCtx, usr, api.validate, api.svc); err != nil {
		return err
	}
	usr, err = api.svc.Update(reqCtx, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, err := getObject[user.User](ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID {
		return errForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) listResearch(ctx echo.Context) error {
	usr, err := getObject[user.User](ctx)
	if err != nil {
		return err
	}
	researches, err := api.researchSvc.ListByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing user research")
	}
	return ctx.JSON(http.StatusOK, researches)
}

type RoleLookupResponse struct {
	RoleID *int `json:"roleId"`
}
