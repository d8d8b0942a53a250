package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/research"
)

type researchApi struct {
	svc      *research.Service
	validate *validator.Validate
}

func registerResearchAPI(authed *echo.Group, deps *Deps) {
	api := researchApi{svc: deps.ResearchSvc, validate: deps.Validate}

	rg := authed.Group("/research")
	rg.POST("", api.create, executiveOnly)
	rg.GET("", api.query)
	rg.POST("/search", api.query)

	dg := rg.Group("/:id", objectLoader(api.svc.Get, nil))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, executiveOnly)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.PUT("/users/:userId", api.linkUser, executiveOnly)
	dg.DELETE("/users/:userId", api.unlinkUser, executiveOnly)
}

func (api *researchApi) create(ctx echo.Context) error {
	var data research.NewResearch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResearch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	res, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating research")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *researchApi) query(ctx echo.Context) error {
	var filter research.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	filter.Clean()

	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying research")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *researchApi) retrieve(ctx echo.Context) error {
	res, err := getObject[research.Research](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *researchApi) update(ctx echo.Context) error {
	res, err := getObject[research.Research](ctx)
	if err != nil {
		return err
	}
	var data research.UpdateResearch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResearch")
	}
	if err = data.Validate(res, api.validate); err != nil {
		return err
	}
	res, err = api.svc.Update(ctx.Request().Context(), res, data)
	if err != nil {
		return errors.Wrap(err, "updating research")
	}
	return ctx.JSON(http.StatusOK, res)
}

// destroy removes the links to users, never the users.
func (api *researchApi) destroy(ctx echo.Context) error {
	res, err := getObject[research.Research](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), res.ID); err != nil {
		return errors.Wrap(err, "deleting research")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *researchApi) linkUser(ctx echo.Context) error {
	return api.changeLink(ctx, api.svc.LinkUser)
}

func (api *researchApi) unlinkUser(ctx echo.Context) error {
	return api.changeLink(ctx, api.svc.UnlinkUser)
}

func (api *researchApi) changeLink(ctx echo.Context, change func(context.Context, int, int) error) error {
	res, err := getObject[research.Research](ctx)
	if err != nil {
		return err
	}
	userID, err := pathID(ctx, "userId")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	if err = change(reqCtx, res.ID, userID); err != nil {
		return errors.Wrap(err, "changing research users")
	}
	res, err = api.svc.Get(reqCtx, res.ID)
	if err != nil {
		return errors.Wrap(err, "finding research")
	}
	return ctx.JSON(http.StatusOK, res)
}
