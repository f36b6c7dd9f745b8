// Package provider defines the key-value store abstraction used by nscache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// bytes that were previously passed to SetEx for a key. Values written by other
// means (INCRBY counters, foreign writers) are returned as stored.
//
// Keys handed to a Provider are already namespaced. Providers never add or strip
// prefixes themselves, and patterns passed to Keys are complete globs in the
// store's native syntax.
package provider

import (
	"context"
	"time"
)

// Provider is a networked string store with expiring keys, glob enumeration and
// atomic integer counters. Must be safe for concurrent use.
type Provider interface {
	// Ping checks connectivity. Used to establish and re-establish availability.
	Ping(ctx context.Context) error

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value with the given TTL (ttl > 0).
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys and reports how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns every key matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// IncrBy atomically adds n (which may be negative) and returns the new
	// value. Absent keys start from zero.
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// Expire sets a TTL on an existing key. Returns false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns the remaining lifetime. ok=false means the key is absent;
	// a negative duration with ok=true means the key has no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// Info returns the store's diagnostic text for a section ("" = default).
	Info(ctx context.Context, section string) (string, error)

	// Close releases resources. Safe to call more than once.
	Close(ctx context.Context) error
}
