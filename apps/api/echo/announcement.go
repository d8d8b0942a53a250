package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core/announcement"
)

type announcementApi struct {
	svc      *announcement.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(authed *echo.Group, deps *Deps) {
	api := announcementApi{svc: deps.AnnouncementSvc, validate: deps.Validate}

	ag := authed.Group("/announcements")
	ag.POST("", api.create, executiveOnly)
	ag.GET("", api.query)
	ag.POST("/search", api.query)

	dg := ag.Group("/:id", objectLoader(api.svc.Get, nil))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, executiveOnly)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.GET("/interests", api.listInterests, executiveOnly)
	dg.POST("/interests", api.registerInterest)
	dg.DELETE("/interests", api.withdrawInterest)
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) query(ctx echo.Context) error {
	var filter announcement.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	filter.Clean()
	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

// update also closes and reopens announcements through isClosed.
func (api *announcementApi) update(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	var data announcement.UpdateAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	a, err = api.svc.Update(ctx.Request().Context(), a, data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *announcementApi) registerInterest(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data announcement.NewInterest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInterest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	in, err := api.svc.RegisterInterest(ctx.Request().Context(), a.ID, ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "registering interest")
	}
	return ctx.JSON(http.StatusCreated, in)
}

func (api *announcementApi) listInterests(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	ins, err := api.svc.ListInterests(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "listing interests")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *announcementApi) withdrawInterest(ctx echo.Context) error {
	a, err := getObject[announcement.Announcement](ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.WithdrawInterest(ctx.Request().Context(), a.ID, ctxUsr.ID); err != nil {
		return errors.Wrap(err, "withdrawing interest")
	}
	return ctx.NoContent(http.StatusNoContent)
}
