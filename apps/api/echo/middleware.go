package echoapi

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

const contextObjectKey = "object"

// executiveOnly rejects non-executives before the handler runs.
// The role comes from the session user, loaded from storage on each request.
func executiveOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if !usr.IsExecutive() {
			return errForbidden
		}
		return next(ctx)
	}
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id < 1 {
		return 0, errNotFound
	}
	return id, nil
}

// objectLoader sets the record identified by the ":id" path param as the context object.
// When ownedBy is given, non-executives only find the records they own.
func objectLoader[T any](get func(context.Context, int) (T, error), ownedBy func(T, int) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return err
			}
			obj, err := get(ctx.Request().Context(), id)
			if err != nil {
				if core.IsKind(err, core.KindNotFound) {
					return err
				}
				return errors.Wrap(err, "loading object")
			}
			if ownedBy != nil && !usr.IsExecutive() && !ownedBy(obj, usr.ID) {
				return errNotFound
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func getObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotInCtx, "retrieving object from context")
	}
	return obj, nil
}

// bindFilter binds a query filter from the query string (GET) or the JSON body (POST search).
func bindFilter(ctx echo.Context, filter interface{}) error {
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.New("invalid filter"))
	}
	return nil
}
