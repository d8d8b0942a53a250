package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/period"
)

type periodApi struct {
	svc      *period.Service
	validate *validator.Validate
}

func registerPeriodAPI(authed *echo.Group, deps *Deps) {
	api := periodApi{svc: deps.PeriodSvc, validate: deps.Validate}

	pg := authed.Group("/applicationPeriod")
	pg.POST("", api.create, executiveOnly)
	pg.GET("", api.query)
	pg.POST("/search", api.query)

	dg := pg.Group("/:id", objectLoader(api.svc.Get, nil))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, executiveOnly)
	dg.DELETE("", api.destroy, executiveOnly)
}

func (api *periodApi) create(ctx echo.Context) error {
	var data period.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating application period")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *periodApi) query(ctx echo.Context) error {
	var filter period.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	if err := filter.Clean(); err != nil {
		return err
	}
	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying application periods")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *periodApi) retrieve(ctx echo.Context) error {
	p, err := getObject[period.ApplicationPeriod](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) update(ctx echo.Context) error {
	p, err := getObject[period.ApplicationPeriod](ctx)
	if err != nil {
		return err
	}
	var data period.UpdatePeriod
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePeriod")
	}
	if err = data.Validate(p, api.validate); err != nil {
		return err
	}
	p, err = api.svc.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating application period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) destroy(ctx echo.Context) error {
	p, err := getObject[period.ApplicationPeriod](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting application period")
	}
	return ctx.NoContent(http.StatusNoContent)
}
