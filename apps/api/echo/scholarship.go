package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/scholarship"
)

type scholarshipApi struct {
	svc      *scholarship.Service
	validate *validator.Validate
	maxSize  int64
}

func registerScholarshipAPI(authed *echo.Group, deps *Deps) {
	api := scholarshipApi{
		svc:      deps.ScholarshipSvc,
		validate: deps.Validate,
		maxSize:  deps.Conf.Upload.MaxSize,
	}

	sg := authed.Group("/scholarships")
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.POST("/search", api.query)

	dg := sg.Group("/:id", objectLoader(api.svc.Get, scholarship.Scholarship.IsOwnedBy))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy, executiveOnly)
	dg.POST("/review", api.review, executiveOnly)
	dg.POST("/tutor-review", api.tutorReview, executiveOnly)
	dg.POST("/files", api.addFiles)
	dg.DELETE("/files/:fileId", api.removeFile)
	dg.GET("/files/:fileId/download", api.fileURL)
}

func (api *scholarshipApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsStudent() {
		return errForbidden
	}

	var data scholarship.NewScholarship
	fc, release, err := bindWithFiles(ctx, &data, api.maxSize)
	if err != nil {
		return err
	}
	defer release()
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data, fc.Add)
	if err != nil {
		return errors.Wrap(err, "creating scholarship")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *scholarshipApi) query(ctx echo.Context) error {
	var filter scholarship.QueryFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	if err := filter.Clean(); err != nil {
		return err
	}

	// students only see their own scholarships
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if !ctxUsr.IsExecutive() {
		filter.UserID = ctxUsr.ID
	}

	page, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scholarships")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *scholarshipApi) retrieve(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

// update applies the fields and the file changes of one request, all or nothing.
func (api *scholarshipApi) update(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	var data scholarship.UpdateScholarship
	fc, release, err := bindWithFiles(ctx, &data, api.maxSize)
	if err != nil {
		return err
	}
	defer release()
	if err = data.Validate(s, api.validate); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), s, data, fc)
	if err != nil {
		return errors.Wrap(err, "updating scholarship")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scholarshipApi) review(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	var data scholarship.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	s, err = api.svc.Review(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "reviewing scholarship")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scholarshipApi) tutorReview(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	var data scholarship.TutorReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TutorReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	s, err = api.svc.TutorReview(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "reviewing scholarship as tutor")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scholarshipApi) destroy(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting scholarship")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *scholarshipApi) addFiles(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	uploads, release, err := bindFiles(ctx, api.maxSize)
	if err != nil {
		return err
	}
	defer release()

	s, err = api.svc.AddFiles(ctx.Request().Context(), s, uploads)
	if err != nil {
		return errors.Wrap(err, "adding scholarship files")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scholarshipApi) removeFile(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	s, err = api.svc.RemoveFile(ctx.Request().Context(), s, ctx.Param("fileId"))
	if err != nil {
		return errors.Wrap(err, "removing scholarship file")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *scholarshipApi) fileURL(ctx echo.Context) error {
	s, err := getObject[scholarship.Scholarship](ctx)
	if err != nil {
		return err
	}
	url, err := api.svc.FileURL(ctx.Request().Context(), s, ctx.Param("fileId"))
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return err
		}
		return errors.Wrap(err, "signing file url")
	}
	return ctx.JSON(http.StatusOK, FileURLResponse{URL: url})
}

type FileURLResponse struct {
	URL string `json:"url"`
}
