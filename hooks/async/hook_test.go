package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/nscache"
)

type countHooks struct {
	nscache.NopHooks
	mu    sync.Mutex
	hits  int
	block chan struct{}
}

func (c *countHooks) Hit(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func TestDeliversAndDrains(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 64)
	for i := 0; i < 50; i++ {
		h.Hit("k")
	}
	h.Close()
	if inner.hits != 50 {
		t.Fatalf("delivered %d events, want 50", inner.hits)
	}
	h.Hit("late")
	if h.Dropped() != 1 {
		t.Fatalf("event after Close must be dropped, dropped=%d", h.Dropped())
	}
	h.Close()
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event may be held by the worker, one sits in the queue; the rest drop
	for i := 0; i < 10; i++ {
		h.Hit("k")
	}
	close(inner.block)
	h.Close()

	if got := uint64(inner.hits) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped %d, want at least 8", h.Dropped())
	}
}
