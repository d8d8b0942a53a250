package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/funding"
)

type fundingApi struct {
	svc      *funding.Service
	validate *validator.Validate
	maxSize  int64
}

func registerFundingAPI(authed *echo.Group, deps *Deps) {
	api := fundingApi{
		svc:      deps.FundingSvc,
		validate: deps.Validate,
		maxSize:  deps.Conf.Upload.MaxSize,
	}

	fg := authed.Group("/fundingRequests")
	fg.POST("", api.create)
	fg.GET("", api.query)
	fg.POST("/search", api.query)

	dg := fg.Group("/:id", objectLoader(api.svc.Get, funding.FundingRequest.IsOwnedBy))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.POST("/review", api.review, executiveOnly)
	dg.POST("/files", api.addFiles)
	dg.DELETE("/files/:fileId", api.removeFile)
	dg.GET("/files/:fileId/download", api.fileURL)
}

func (api *fundingApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data funding.NewFundingRequest
	fc, release, err := bindWithFiles(ctx, &data, api.maxSize)
	if err != nil {
		return err
	}
	defer release()
	fr, err := data.Validate(api.validate)
	if err != nil {
		return err
	}

	fr, err = api.svc.Create(ctx.Request().Context(), ctxUsr.ID, fr, fc.Add)
	if err != nil {
		return errors.Wrap(err, "creating funding request")
	}
	return ctx.JSON(http.StatusCreated, fr)
}

func (api *fundingApi) query(ctx echo.Context) error {
	var filter funding.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	if err := filter.Clean(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsExecutive() {
		filter.UserID = ctxUsr.ID
	}

	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying funding requests")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *fundingApi) retrieve(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fr)
}

func (api *fundingApi) update(ctx echo.Context) error {
	orig, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	var data funding.UpdateFundingRequest
	fc, release, err := bindWithFiles(ctx, &data, api.maxSize)
	if err != nil {
		return err
	}
	defer release()
	fr, err := data.Validate(orig, api.validate)
	if err != nil {
		return err
	}

	fr, err = api.svc.Update(ctx.Request().Context(), fr, fc)
	if err != nil {
		return errors.Wrap(err, "updating funding request")
	}
	return ctx.JSON(http.StatusOK, fr)
}

func (api *fundingApi) review(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	var data funding.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	fr, err = api.svc.Review(ctx.Request().Context(), fr, data)
	if err != nil {
		return errors.Wrap(err, "reviewing funding request")
	}
	return ctx.JSON(http.StatusOK, fr)
}

func (api *fundingApi) destroy(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), fr.ID); err != nil {
		return errors.Wrap(err, "deleting funding request")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *fundingApi) addFiles(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	uploads, release, err := bindFiles(ctx, api.maxSize)
	if err != nil {
		return err
	}
	defer release()

	fr, err = api.svc.AddFiles(ctx.Request().Context(), fr, uploads)
	if err != nil {
		return errors.Wrap(err, "adding funding request files")
	}
	return ctx.JSON(http.StatusOK, fr)
}

func (api *fundingApi) removeFile(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	fr, err = api.svc.RemoveFile(ctx.Request().Context(), fr, ctx.Param("fileId"))
	if err != nil {
		return errors.Wrap(err, "removing funding request file")
	}
	return ctx.JSON(http.StatusOK, fr)
}

func (api *fundingApi) fileURL(ctx echo.Context) error {
	fr, err := getObject[funding.FundingRequest](ctx)
	if err != nil {
		return err
	}
	url, err := api.svc.FileURL(ctx.Request().Context(), fr, ctx.Param("fileId"))
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return err
		}
		return errors.Wrap(err, "signing file url")
	}
	return ctx.JSON(http.StatusOK, FileURLResponse{URL: url})
}
