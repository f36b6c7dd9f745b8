package nscache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/nscache/codec"
	pr "github.com/unkn0wn-root/nscache/provider"
)

// Compute produces a value on a Remember miss.
type Compute func(ctx context.Context) (any, error)

// Cache is the namespaced cache API. All methods are safe for concurrent use.
//
// Reads report a miss with ok=false. A miss, an unavailable store and a failed
// store call look the same to the caller; Hooks tell them apart.
type Cache interface {
	Available() bool
	// Reconnect pings the store and updates Available. It is the only way an
	// unavailable cache becomes available again.
	Reconnect(ctx context.Context) bool
	Prefix() string
	DefaultTTL() time.Duration
	Close(ctx context.Context) error

	// Single
	Get(ctx context.Context, key string) (v any, ok bool, err error)
	GetInto(ctx context.Context, key string, dst any) (ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Get-or-compute
	Remember(ctx context.Context, key string, ttl time.Duration, fn Compute) (any, error)
	RememberInto(ctx context.Context, key string, ttl time.Duration, dst any, fn Compute) error

	// Counters and expiry
	Increment(ctx context.Context, key string, n int64) (v int64, ok bool, err error)
	Decrement(ctx context.Context, key string, n int64) (v int64, ok bool, err error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// Prefix-scoped administration. O(keys under the prefix); keep off hot paths.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Flush(ctx context.Context) (int64, error)
	Stats(ctx context.Context) Stats
}

// Options tune the behavior of the cache.
// Only Prefix and Provider are required; others have sensible defaults.
type Options struct {
	// Required
	Prefix   string // prepended to every key, e.g. "ibm_a1_"
	Provider pr.Provider

	Codec          c.Codec       // nil => codec.JSON
	Logger         Logger        // nil => NopLogger
	Hooks          Hooks         // nil => NopHooks
	DefaultTTL     time.Duration // Set/Remember with ttl=0; 0 => 24h
	ConnectTimeout time.Duration // initial ping and Reconnect; 0 => 2.5s
	OpTimeout      time.Duration // per store call; 0 => 1s
	AdminTimeout   time.Duration // Flush, DeletePattern, Stats; 0 => 30s
	Disabled       bool          // default false (enabled)
	Debug          bool          // per-operation debug logging
}

// New builds a cache and checks connectivity once. An unreachable store is not
// an error: the returned cache reports Available() == false and degrades to
// misses. Errors are returned only for invalid options.
//
// The cache owns opts.Provider and closes it in Close.
func New(ctx context.Context, opts Options) (Cache, error) {
	return newCache(ctx, opts)
}
