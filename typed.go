package nscache

import (
	"context"
	"time"
)

// GetAs reads key into a T. See Cache.GetInto.
func GetAs[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var v T
	ok, err := c.GetInto(ctx, key, &v)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// RememberAs is the typed form of Cache.Remember.
func RememberAs[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var v T
	if fn == nil {
		return v, ErrNilCompute
	}
	err := c.RememberInto(ctx, key, ttl, &v, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
