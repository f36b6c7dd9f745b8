package nscache

import "time"

const (
	DefaultTTL            = 24 * time.Hour
	DefaultConnectTimeout = 2500 * time.Millisecond
	DefaultOpTimeout      = time.Second
	DefaultAdminTimeout   = 30 * time.Second
)

// NoExpiry is what TTL reports for a key that exists but never expires.
const NoExpiry time.Duration = -1

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
