package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/nscache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitMissEvery    uint64
	StoreErrorEvery uint64
	FallbackEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitMissCtr  atomic.Uint64
	storeErrCtr atomic.Uint64
	fallbackCtr atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("nscache.hit", "key", h.redact(key))
}

func (h *Hooks) Miss(key string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("nscache.miss", "key", h.redact(key))
}

func (h *Hooks) StoreError(op, key string, err error) {
	if h.l == nil || !sample(h.opts.StoreErrorEvery, &h.storeErrCtr) {
		return
	}
	h.l.Warn("nscache.store_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) Skipped(op string) {
	if h.l == nil || !sample(h.opts.HitMissEvery, &h.hitMissCtr) {
		return
	}
	h.l.Debug("nscache.skipped", "op", op)
}

func (h *Hooks) DecodeFallback(key string, err error) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Info("nscache.decode_fallback",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ConnectionChanged(available bool) {
	if h.l == nil {
		return
	}
	if available {
		h.l.Info("nscache.connection_restored")
		return
	}
	h.l.Warn("nscache.connection_lost")
}
