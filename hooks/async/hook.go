// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitMissEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := nscache.New(ctx, nscache.Options{
//	    Prefix:   "ibm_a1_",
//	    Provider: redis.New(redis.Config{Host: "127.0.0.1"}),
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/nscache"
)

// Hooks forwards events to inner on a small worker pool. Events are dropped,
// never blocked on, when the queue is full.
type Hooks struct {
	inner   nscache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(inner nscache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = nscache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent afterwards are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)      { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string)     { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) Skipped(op string) { h.try(func() { h.inner.Skipped(op) }) }
func (h *Hooks) StoreError(op, k string, err error) {
	h.try(func() { h.inner.StoreError(op, k, err) })
}
func (h *Hooks) DecodeFallback(k string, err error) {
	h.try(func() { h.inner.DecodeFallback(k, err) })
}
func (h *Hooks) ConnectionChanged(available bool) {
	h.try(func() { h.inner.ConnectionChanged(available) })
}
