package client

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/investiga/core"
)

var errWrongRole = &Problem{Kind: core.KindForbidden, Status: http.StatusForbidden, Message: "permission denied"}

// LoadScreen resolves the session role and runs fetch concurrently, waiting for both.
// The data is only returned when the session user has requiredRole, otherwise the Result is forbidden.
// A failed role resolution wins over the outcome of fetch.
func LoadScreen[T any](ctx context.Context, s *Session, requiredRole int, fetch func(ctx context.Context, c *Client) (T, error)) Result[T] {
	var (
		roleID  *int
		roleErr error
		data    T
		dataErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roleID, roleErr = s.Role(gctx)
		return roleErr
	})
	g.Go(func() error {
		data, dataErr = fetch(gctx, s.Client())
		return nil
	})
	_ = g.Wait()

	if roleErr != nil {
		return Result[T]{Err: AsProblem(roleErr)}
	}
	if roleID == nil || *roleID != requiredRole {
		return Result[T]{Err: errWrongRole}
	}
	return ResultOf(data, dataErr)
}
