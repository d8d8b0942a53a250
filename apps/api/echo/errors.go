package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/user"
)

var (
	errUnauthorized   = core.NewError(core.KindUnauthorized, "user not authenticated")
	errInvalidToken   = core.NewError(core.KindUnauthorized, "invalid or expired token")
	errRefreshExpired = core.NewError(core.KindForbidden, "refresh has expired")
	errForbidden      = core.NewError(core.KindForbidden, "permission denied")
	errNotFound       = core.NewError(core.KindNotFound, "not found")
	errObjNotInCtx    = errors.New("object not found in echo.Context")

	kindCodes = map[core.ErrorKind]int{
		core.KindBadData:       http.StatusBadRequest,
		core.KindUnauthorized:  http.StatusUnauthorized,
		core.KindForbidden:     http.StatusForbidden,
		core.KindNotFound:      http.StatusNotFound,
		core.KindConflict:      http.StatusConflict,
		core.KindTimeout:       http.StatusGatewayTimeout,
		core.KindCannotConnect: http.StatusBadGateway,
		core.KindServer:        http.StatusInternalServerError,
	}
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   core.ErrorKind    `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

func kindOfCode(code int) core.ErrorKind {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity,
		code == http.StatusRequestEntityTooLarge, code == http.StatusUnsupportedMediaType:
		return core.KindBadData
	case code == http.StatusUnauthorized:
		return core.KindUnauthorized
	case code == http.StatusForbidden:
		return core.KindForbidden
	case code == http.StatusNotFound, code == http.StatusMethodNotAllowed:
		return core.KindNotFound
	case code == http.StatusConflict:
		return core.KindConflict
	case code == http.StatusGatewayTimeout, code == http.StatusRequestTimeout:
		return core.KindTimeout
	case code >= 500:
		return core.KindServer
	}
	return core.KindUnknown
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp ErrorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			resp.Kind = kindOfCode(code)
			if msg, ok := origErr.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(code)
			}
		case validator.ValidationErrors:
			resp.Fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Fields[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			resp.Kind = core.KindBadData
			resp.Error = "invalid data"
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				resp.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
				resp.Error = "invalid data"
			} else {
				resp.Error = origErr.Error()
			}
			code = http.StatusBadRequest
			resp.Kind = core.KindBadData
		case *core.Error:
			resp.Kind = origErr.Kind
			resp.Error = origErr.Msg
			if code = kindCodes[origErr.Kind]; code == 0 {
				code = http.StatusInternalServerError
			}
		}

		if code == 0 || code >= http.StatusInternalServerError {
			// any other error is a server error
			if code == 0 {
				code = http.StatusInternalServerError
				resp.Kind = core.KindServer
				resp.Error = http.StatusText(code)
			}

			var usr user.User
			if u, ok := ctx.Get(contextUserKey).(user.User); ok {
				usr = u
			}
			logger.Error(resp.Error, errors.Wrap(err, resp.Error), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				resp.Error = err.Error()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
