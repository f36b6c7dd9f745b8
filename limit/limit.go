// Package limit implements fixed-window rate limiting and one-shot claims on
// top of a namespaced cache.
//
// Both use the same sequence: increment the counter, and only when it becomes 1
// set its expiry. The counter value is never rewritten, so its TTL always
// starts at the first hit of a window. A later hit that finds the counter
// without an expiry sets it again.
package limit

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/nscache"
)

var ErrBadConfig = errors.New("limit: Cache, Max and Window are required")

// Decision is the outcome of one Allow call.
type Decision struct {
	Count      int64
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	// Degraded is set when the cache could not count the request and it was
	// let through.
	Degraded bool
}

// Window allows at most Max events per identity in each Window.
type Window struct {
	Cache     nscache.Cache
	Max       int64
	Window    time.Duration
	KeyPrefix string // e.g. "rate:contact:"
}

func (w Window) Allow(ctx context.Context, identity string) (Decision, error) {
	if w.Cache == nil || w.Max <= 0 || w.Window < time.Second {
		return Decision{}, ErrBadConfig
	}
	key := w.KeyPrefix + identity

	n, expiring, err := count(ctx, w.Cache, key, w.Window)
	if err != nil {
		return Decision{}, err
	}
	if n == 0 {
		return Decision{Allowed: true, Remaining: w.Max, Degraded: true}, nil
	}
	if !expiring {
		return Decision{Count: n, Allowed: true, Remaining: max(w.Max-n, 0), Degraded: true}, nil
	}

	d := Decision{Count: n, Allowed: n <= w.Max, Remaining: max(w.Max-n, 0)}
	if !d.Allowed {
		if ttl, ok, _ := w.Cache.TTL(ctx, key); ok && ttl > 0 {
			d.RetryAfter = ttl
		} else {
			d.RetryAfter = w.Window
		}
	}
	return d, nil
}

// Once grants the first claim of an id within TTL and refuses the rest.
type Once struct {
	Cache     nscache.Cache
	TTL       time.Duration
	KeyPrefix string
}

// Claim reports whether id was claimed by this call. With the cache down, or
// the claim's expiry impossible to set, every claim succeeds.
func (o Once) Claim(ctx context.Context, id string) (bool, error) {
	if o.Cache == nil || o.TTL < time.Second {
		return false, ErrBadConfig
	}
	n, expiring, err := count(ctx, o.Cache, o.KeyPrefix+id, o.TTL)
	if err != nil {
		return false, err
	}
	return n <= 1 || !expiring, nil
}

// count increments key and makes sure it expires. n is 0 when the cache could
// not count. expiring is false when the counter may be left without a TTL.
//
// A counter that missed its expiry on the first hit is repaired by the next
// one, so a lost EXPIRE cannot pin an identity forever.
func count(ctx context.Context, c nscache.Cache, key string, ttl time.Duration) (n int64, expiring bool, err error) {
	n, ok, err := c.Increment(ctx, key, 1)
	if err != nil || !ok {
		return 0, false, err
	}
	if n > 1 {
		cur, ok, err := c.TTL(ctx, key)
		if err != nil {
			return 0, false, err
		}
		if !ok || cur != nscache.NoExpiry {
			return n, true, nil
		}
	}
	for range 2 {
		ok, err := c.Expire(ctx, key, ttl)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return n, true, nil
		}
	}
	return n, false, nil
}
