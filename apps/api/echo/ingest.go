package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/ingest"
)

const ingestFileField = "file"

func registerIngestAPI(authed *echo.Group, deps *Deps) {
	svc := deps.IngestSvc
	maxSize := deps.Conf.Upload.MaxSize

	// POST /v1/ingest/{students,researchers,research} with the .xlsx in the "file" field
	authed.POST("/ingest/:kind", func(ctx echo.Context) error {
		kind, err := ingest.ParseKind(ctx.Param("kind"))
		if err != nil {
			return err
		}
		fh, err := ctx.FormFile(ingestFileField)
		if err != nil {
			return core.NewFieldError(ingestFileField, "this field is required")
		}
		if fh.Size > maxSize {
			return core.NewFieldError(ingestFileField, "the file is too large")
		}
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening upload")
		}
		defer f.Close()

		report, err := svc.Ingest(ctx.Request().Context(), kind, f)
		if err != nil {
			if core.IsKind(err, core.KindBadData) {
				return err
			}
			return errors.Wrap(err, "ingesting spreadsheet")
		}
		return ctx.JSON(http.StatusOK, report)
	}, executiveOnly)
}
