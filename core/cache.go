package core

import (
	"context"
	"time"
)

var ErrCacheMiss = NewError(KindNotFound, "cache miss")

// Cache is any service that can hold short-lived values.
type Cache interface {
	// Get returns ErrCacheMiss when key is not set or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
