package echoapi

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

func registerFileAPI(v1 *echo.Group, deps *Deps) {
	storage := deps.Storage

	// the signed token is the credential, no session needed
	v1.GET("/files/:token", func(ctx echo.Context) error {
		key, name, err := storage.Verify(ctx.Param("token"))
		if err != nil {
			return err
		}
		rc, err := storage.Open(ctx.Request().Context(), key)
		if err != nil {
			if errors.Cause(err) == core.ErrFileNotFound {
				return err
			}
			return errors.Wrap(err, "opening file")
		}
		defer rc.Close()

		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = echo.MIMEOctetStream
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return ctx.Stream(http.StatusOK, ctype, rc)
	})
}
