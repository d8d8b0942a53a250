package echoapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

const (
	maxFilesPerRequest = 10

	formDataField   = "data"
	formFilesField  = "files"
	formKeepField   = "keep"
	formRemoveField = "remove"
)

// bodyLimit is the echo BodyLimit allowing maxFilesPerRequest files of maxSize bytes.
func bodyLimit(maxSize int64) string {
	return strconv.FormatInt(maxSize*maxFilesPerRequest/1024+1024, 10) + "K"
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindWithFiles binds data from a JSON body, or from a multipart form where the "data" field holds the JSON,
// "files" the new attachments, "keep" and "remove" the IDs of current ones.
// A "keep" field sent with no value removes every current file.
// The returned func releases the uploads and must be called once they are consumed.
func bindWithFiles(ctx echo.Context, data interface{}, maxSize int64) (core.FileChanges, func(), error) {
	noop := func() {}
	if !isMultipart(ctx) {
		if err := ctx.Bind(data); err != nil {
			return core.FileChanges{}, noop, errors.Wrap(err, "binding request body")
		}
		return core.FileChanges{}, noop, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return core.FileChanges{}, noop, core.NewFieldError(formFilesField, "invalid multipart form")
	}
	if vals := form.Value[formDataField]; len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
		if err = json.Unmarshal([]byte(vals[0]), data); err != nil {
			_ = form.RemoveAll()
			return core.FileChanges{}, noop, core.NewFieldError(formDataField, "invalid JSON: "+err.Error())
		}
	}

	var fc core.FileChanges
	if vals, ok := form.Value[formKeepField]; ok {
		fc.Keep = nonBlank(vals)
	}
	fc.Remove = nonBlank(form.Value[formRemoveField])

	uploads, closers, err := openUploads(form.File[formFilesField], maxSize)
	release := func() {
		for _, c := range closers {
			_ = c.Close()
		}
		_ = form.RemoveAll()
	}
	if err != nil {
		release()
		return core.FileChanges{}, noop, err
	}
	fc.Add = uploads
	return fc, release, nil
}

// bindFiles binds the "files" of a multipart form.
func bindFiles(ctx echo.Context, maxSize int64) ([]core.Upload, func(), error) {
	var placeholder struct{}
	fc, release, err := bindWithFiles(ctx, &placeholder, maxSize)
	if err != nil {
		return nil, release, err
	}
	if len(fc.Add) == 0 {
		release()
		return nil, func() {}, core.NewFieldError(formFilesField, "this field is required")
	}
	return fc.Add, release, nil
}

func openUploads(fhs []*multipart.FileHeader, maxSize int64) ([]core.Upload, []io.Closer, error) {
	if len(fhs) > maxFilesPerRequest {
		return nil, nil, core.NewFieldError(formFilesField, fmt.Sprintf("at most %d files are allowed", maxFilesPerRequest))
	}
	uploads := make([]core.Upload, 0, len(fhs))
	closers := make([]io.Closer, 0, len(fhs))
	for _, fh := range fhs {
		if fh.Size > maxSize {
			return nil, closers, core.NewFieldError(formFilesField, fmt.Sprintf("%q exceeds the maximum size of %d bytes", fh.Filename, maxSize))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closers, errors.Wrapf(err, "opening upload %q", fh.Filename)
		}
		closers = append(closers, f)
		ctype := fh.Header.Get(echo.HeaderContentType)
		if ctype == "" {
			ctype = echo.MIMEOctetStream
		}
		uploads = append(uploads, core.Upload{Name: fh.Filename, ContentType: ctype, Reader: f})
	}
	return uploads, closers, nil
}

func nonBlank(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
