package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/thesis"
)

type thesisApi struct {
	svc      *thesis.Service
	validate *validator.Validate
}

func registerThesisAPI(authed *echo.Group, deps *Deps) {
	api := thesisApi{svc: deps.ThesisSvc, validate: deps.Validate}

	tg := authed.Group("/theses")
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.POST("/search", api.query)

	dg := tg.Group("/:id", objectLoader(api.svc.Get, thesis.Thesis.IsOwnedBy))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.POST("/review", api.review, executiveOnly)
}

func (api *thesisApi) create(ctx echo.Context) error {
	var data thesis.NewThesis
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThesis")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ownerID := ctxUsr.ID
	if data.UserID != nil && *data.UserID != ownerID {
		if !ctxUsr.IsExecutive() {
			return errForbidden
		}
		ownerID = *data.UserID
	}

	th, err := api.svc.Create(ctx.Request().Context(), ownerID, data)
	if err != nil {
		return errors.Wrap(err, "creating thesis")
	}
	return ctx.JSON(http.StatusCreated, th)
}

func (api *thesisApi) query(ctx echo.Context) error {
	var filter thesis.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	if err := filter.Clean(); err != nil {
		return err
	}

	// non-executives only see their own theses
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsExecutive() {
		filter.UserID = ctxUsr.ID
	}

	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying theses")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *thesisApi) retrieve(ctx echo.Context) error {
	th, err := getObject[thesis.Thesis](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) update(ctx echo.Context) error {
	th, err := getObject[thesis.Thesis](ctx)
	if err != nil {
		return err
	}
	var data thesis.UpdateThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateThesis")
	}
	if err = data.Validate(th, api.validate); err != nil {
		return err
	}
	th, err = api.svc.Update(ctx.Request().Context(), th, data)
	if err != nil {
		return errors.Wrap(err, "updating thesis")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) review(ctx echo.Context) error {
	th, err := getObject[thesis.Thesis](ctx)
	if err != nil {
		return err
	}
	var data thesis.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	th, err = api.svc.Review(ctx.Request().Context(), th, data)
	if err != nil {
		return errors.Wrap(err, "reviewing thesis")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) destroy(ctx echo.Context) error {
	th, err := getObject[thesis.Thesis](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), th.ID); err != nil {
		return errors.Wrap(err, "deleting thesis")
	}
	return ctx.NoContent(http.StatusNoContent)
}
