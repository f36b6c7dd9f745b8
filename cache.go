package nscache

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/internal/keys"
	"github.com/unkn0wn-root/nscache/internal/wire"
	pr "github.com/unkn0wn-root/nscache/provider"
)

type cache struct {
	ns       keys.Namespace
	provider pr.Provider
	codec    c.Codec
	log      Logger
	hooks    Hooks
	debug    bool
	enabled  bool

	defaultTTL     time.Duration
	connectTimeout time.Duration
	opTimeout      time.Duration
	adminTimeout   time.Duration

	available atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	flights singleflight.Group
}

func newCache(ctx context.Context, opts Options) (*cache, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	if opts.Prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if opts.DefaultTTL < 0 || (opts.DefaultTTL > 0 && opts.DefaultTTL < time.Second) {
		return nil, ErrInvalidTTL
	}

	cc := &cache{
		ns:       keys.New(opts.Prefix),
		provider: opts.Provider,
		debug:    opts.Debug,
		enabled:  !opts.Disabled,
	}

	// defaults
	cc.codec = coalesce[c.Codec](opts.Codec, c.JSON{})
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.defaultTTL = coalesce(opts.DefaultTTL, DefaultTTL)
	cc.connectTimeout = coalesce(opts.ConnectTimeout, DefaultConnectTimeout)
	cc.opTimeout = coalesce(opts.OpTimeout, DefaultOpTimeout)
	cc.adminTimeout = coalesce(opts.AdminTimeout, DefaultAdminTimeout)

	if !cc.enabled {
		cc.log.Info("caching is disabled in configuration", Fields{"prefix": opts.Prefix})
		return cc, nil
	}

	if err := cc.ping(ctx); err != nil {
		cc.log.Warn("cache store unreachable; caching disabled", Fields{"prefix": opts.Prefix, "err": err})
		return cc, nil
	}
	cc.available.Store(true)
	cc.debugf("connected to cache store", Fields{"prefix": opts.Prefix})
	return cc, nil
}

func (cc *cache) Available() bool           { return cc.available.Load() }
func (cc *cache) Prefix() string            { return cc.ns.Prefix() }
func (cc *cache) DefaultTTL() time.Duration { return cc.defaultTTL }

func (cc *cache) Reconnect(ctx context.Context) bool {
	if !cc.enabled || cc.closed.Load() {
		return false
	}
	err := cc.ping(ctx)
	now := err == nil
	was := cc.available.Swap(now)
	if cc.closed.Load() {
		// Close ran during the ping; it owns the final state.
		cc.available.Store(false)
		return false
	}
	if was != now {
		cc.hooks.ConnectionChanged(now)
		if now {
			cc.log.Info("cache store reachable again", Fields{"prefix": cc.ns.Prefix()})
		} else {
			cc.log.Warn("cache store lost", Fields{"prefix": cc.ns.Prefix(), "err": err})
		}
	}
	return now
}

func (cc *cache) Close(ctx context.Context) error {
	cc.closeOnce.Do(func() {
		cc.closed.Store(true)
		if cc.available.Swap(false) {
			cc.hooks.ConnectionChanged(false)
		}
		cc.closeErr = cc.provider.Close(ctx)
		if cc.closeErr != nil {
			cc.log.Warn("cache close failed", Fields{"prefix": cc.ns.Prefix(), "err": cc.closeErr})
			return
		}
		cc.debugf("cache connection closed", Fields{"prefix": cc.ns.Prefix()})
	})
	return cc.closeErr
}

func (cc *cache) Get(ctx context.Context, key string) (any, bool, error) {
	var v any
	ok, err := cc.GetInto(ctx, key, &v)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (cc *cache) GetInto(ctx context.Context, key string, dst any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if !isPtr(dst) {
		return false, ErrNilDestination
	}
	raw, ok := cc.fetch(ctx, key)
	if !ok {
		return false, nil
	}
	if err := cc.decode(key, raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (cc *cache) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	ttl, err := cc.resolveTTL(ttl)
	if err != nil {
		return false, err
	}
	if !cc.ready("set") {
		return false, nil
	}
	payload, err := cc.codec.Marshal(value)
	if err != nil {
		return false, &EncodeError{Key: key, Codec: cc.codec.Name(), Err: err}
	}

	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	if err := cc.provider.SetEx(octx, cc.ns.Physical(key), wire.Encode(payload), ttl); err != nil {
		cc.fail("set", key, err)
		return false, nil
	}
	cc.debugf("cache set", Fields{"key": key, "ttl": ttl})
	return true, nil
}

func (cc *cache) Delete(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if !cc.ready("delete") {
		return false, nil
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	n, err := cc.provider.Del(octx, cc.ns.Physical(key))
	if err != nil {
		cc.fail("delete", key, err)
		return false, nil
	}
	cc.debugf("cache delete", Fields{"key": key, "removed": n > 0})
	return n > 0, nil
}

func (cc *cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if !cc.ready("exists") {
		return false, nil
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	ok, err := cc.provider.Exists(octx, cc.ns.Physical(key))
	if err != nil {
		cc.fail("exists", key, err)
		return false, nil
	}
	return ok, nil
}

func (cc *cache) Remember(ctx context.Context, key string, ttl time.Duration, fn Compute) (any, error) {
	var v any
	if err := cc.RememberInto(ctx, key, ttl, &v, fn); err != nil {
		return nil, err
	}
	return v, nil
}

// RememberInto fills dst from the cache, or runs fn once, stores its result and
// copies it into dst. Concurrent misses on the same key within this process
// share one fn call. If fn fails nothing is stored.
//
// A shared fn call is not cancelled with the caller that started it; a caller
// whose ctx ends returns ctx.Err() while the call completes for the others.
func (cc *cache) RememberInto(ctx context.Context, key string, ttl time.Duration, dst any, fn Compute) error {
	if fn == nil {
		return ErrNilCompute
	}
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := cc.resolveTTL(ttl); err != nil {
		return err
	}

	ok, err := cc.GetInto(ctx, key, dst)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			return err
		}
		// unreadable entry for this dst: recompute and overwrite
		cc.debugf("remember: recomputing undecodable entry", Fields{"key": key, "err": err})
	} else if ok {
		return nil
	}

	if !cc.Available() {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		return assign(cc.codec, dst, v)
	}

	// The shared call outlives any single waiter: it keeps ctx values but not
	// its cancellation, and each caller stops waiting when its own ctx is done.
	flight := cc.flights.DoChan(cc.ns.Physical(key), func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		v, err := fn(sctx)
		if err != nil {
			return nil, err
		}
		if _, err := cc.Set(sctx, key, v, ttl); err != nil {
			return nil, err
		}
		return v, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return res.Err
	}
	if res.Shared {
		cc.debugf("remember: shared computation", Fields{"key": key})
	}
	return assign(cc.codec, dst, res.Val)
}

func (cc *cache) Increment(ctx context.Context, key string, n int64) (int64, bool, error) {
	return cc.incrBy(ctx, "increment", key, n)
}

func (cc *cache) Decrement(ctx context.Context, key string, n int64) (int64, bool, error) {
	if n == math.MinInt64 {
		return 0, false, ErrDeltaRange
	}
	return cc.incrBy(ctx, "decrement", key, -n)
}

func (cc *cache) incrBy(ctx context.Context, op, key string, n int64) (int64, bool, error) {
	if err := validKey(key); err != nil {
		return 0, false, err
	}
	if !cc.ready(op) {
		return 0, false, nil
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	v, err := cc.provider.IncrBy(octx, cc.ns.Physical(key), n)
	if err != nil {
		cc.fail(op, key, err)
		return 0, false, nil
	}
	return v, true, nil
}

// Expire sets a TTL on an existing key without touching its value. ttl=0 means
// the default TTL. Returns false if the key does not exist.
func (cc *cache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	ttl, err := cc.resolveTTL(ttl)
	if err != nil {
		return false, err
	}
	if !cc.ready("expire") {
		return false, nil
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	ok, err := cc.provider.Expire(octx, cc.ns.Physical(key), ttl)
	if err != nil {
		cc.fail("expire", key, err)
		return false, nil
	}
	return ok, nil
}

// TTL reports the remaining lifetime of key: ok=false if absent, NoExpiry if
// the key never expires.
func (cc *cache) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if err := validKey(key); err != nil {
		return 0, false, err
	}
	if !cc.ready("ttl") {
		return 0, false, nil
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	d, ok, err := cc.provider.TTL(octx, cc.ns.Physical(key))
	if err != nil {
		cc.fail("ttl", key, err)
		return 0, false, nil
	}
	if !ok {
		return 0, false, nil
	}
	if d < 0 {
		return NoExpiry, true, nil
	}
	return d, true, nil
}

// DeletePattern deletes the keys matching prefix+pattern. The pattern is
// relative to the prefix ("user:*"), and the prefix itself is matched literally.
func (cc *cache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return 0, ErrEmptyKey
	}
	if !cc.ready("delete_pattern") {
		return 0, nil
	}
	n, err := cc.deleteMatching(ctx, cc.ns.Pattern(pattern))
	if err != nil {
		cc.fail("delete_pattern", pattern, err)
		return n, nil
	}
	cc.debugf("cache delete pattern", Fields{"pattern": pattern, "deleted": n})
	return n, nil
}

// Flush deletes every key under this cache's prefix and nothing else.
func (cc *cache) Flush(ctx context.Context) (int64, error) {
	if !cc.ready("flush") {
		return 0, nil
	}
	n, err := cc.deleteMatching(ctx, cc.ns.All())
	if err != nil {
		cc.fail("flush", "", err)
		return n, nil
	}
	cc.log.Info("cache flushed", Fields{"prefix": cc.ns.Prefix(), "deleted": n})
	return n, nil
}

func (cc *cache) deleteMatching(ctx context.Context, glob string) (int64, error) {
	actx, cancel := context.WithTimeout(ctx, cc.adminTimeout)
	defer cancel()
	matched, err := cc.provider.Keys(actx, glob)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	return cc.provider.Del(actx, matched...)
}

// fetch reads the raw stored bytes; ok=false covers miss, unavailability and
// store failure alike.
func (cc *cache) fetch(ctx context.Context, key string) ([]byte, bool) {
	if !cc.ready("get") {
		return nil, false
	}
	octx, cancel := cc.opCtx(ctx)
	defer cancel()
	raw, ok, err := cc.provider.Get(octx, cc.ns.Physical(key))
	if err != nil {
		cc.fail("get", key, err)
		return nil, false
	}
	if !ok {
		cc.hooks.Miss(key)
		cc.debugf("cache miss", Fields{"key": key})
		return nil, false
	}
	cc.hooks.Hit(key)
	cc.debugf("cache hit", Fields{"key": key})
	return raw, true
}

// decode is the two-stage read: framed payloads go through the codec; anything
// else, or a framed payload the codec rejects for a generic destination, is
// handed back as the stored string.
func (cc *cache) decode(key string, raw []byte, dst any) error {
	payload, err := wire.Decode(raw)
	if err == nil {
		if err = cc.codec.Unmarshal(payload, dst); err == nil {
			return nil
		}
		if _, generic := dst.(*any); !generic {
			return &DecodeError{Key: key, Err: err}
		}
	}
	if !errors.Is(err, wire.ErrUnframed) {
		cc.hooks.DecodeFallback(key, err)
		cc.debugf("cache value returned raw", Fields{"key": key, "err": err})
	}
	if err := assignRaw(cc.codec, raw, dst); err != nil {
		return &DecodeError{Key: key, Err: err}
	}
	return nil
}

// assignRaw stores unframed bytes into dst. Integer destinations accept the
// decimal text INCRBY leaves behind; other types are given to the codec.
func assignRaw(codec c.Codec, raw []byte, dst any) error {
	switch d := dst.(type) {
	case *any:
		*d = string(raw)
	case *string:
		*d = string(raw)
	case *[]byte:
		*d = append((*d)[:0], raw...)
	case *int64:
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return err
		}
		*d = n
	case *int:
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return err
		}
		*d = n
	default:
		return codec.Unmarshal(raw, dst)
	}
	return nil
}

// assign copies a computed value into dst, converting through the codec when
// the types differ.
func assign(codec c.Codec, dst, v any) error {
	if p, ok := dst.(*any); ok {
		*p = v
		return nil
	}
	dv := reflect.ValueOf(dst).Elem()
	if v != nil {
		if sv := reflect.ValueOf(v); sv.Type().AssignableTo(dv.Type()) {
			dv.Set(sv)
			return nil
		}
	}
	b, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	return codec.Unmarshal(b, dst)
}

func (cc *cache) ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, cc.connectTimeout)
	defer cancel()
	return cc.provider.Ping(pctx)
}

func (cc *cache) ready(op string) bool {
	if cc.available.Load() {
		return true
	}
	cc.hooks.Skipped(op)
	return false
}

func (cc *cache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cc.opTimeout)
}

// resolveTTL maps 0 to the default TTL and rejects anything under a second,
// which SETEX cannot express.
func (cc *cache) resolveTTL(ttl time.Duration) (time.Duration, error) {
	if ttl == 0 {
		return cc.defaultTTL, nil
	}
	if ttl < time.Second {
		return 0, ErrInvalidTTL
	}
	return ttl, nil
}

func (cc *cache) fail(op, key string, err error) {
	cc.hooks.StoreError(op, key, err)
	cc.debugf("cache "+op+" failed", Fields{"key": key, "err": err})
}

func (cc *cache) debugf(msg string, f Fields) {
	if cc.debug {
		cc.log.Debug(msg, f)
	}
}

func validKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func isPtr(dst any) bool {
	if dst == nil {
		return false
	}
	v := reflect.ValueOf(dst)
	return v.Kind() == reflect.Pointer && !v.IsNil()
}
