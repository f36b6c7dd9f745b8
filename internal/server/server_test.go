package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/nscache"
	promhooks "github.com/unkn0wn-root/nscache/hooks/prom"
	"github.com/unkn0wn-root/nscache/provider/redis"
)

const testKey = "s3cret"

func init() { gin.SetMode(gin.TestMode) }

type countingPage struct{ renders atomic.Int32 }

func (p *countingPage) Render(context.Context, string) ([]byte, error) {
	p.renders.Add(1)
	return []byte("<html><body>hello</body></html>"), nil
}

type flakyRelay struct{ fails atomic.Int32 }

func (r *flakyRelay) Deliver(context.Context, Submission) error {
	if r.fails.Add(-1) >= 0 {
		return errors.New("smtp down")
	}
	return nil
}

type fixture struct {
	mr    *miniredis.Miniredis
	cache nscache.Cache
	page  *countingPage
	srv   *Server
}

func newFixture(t *testing.T, disabled bool, mutate func(*Options, *Deps)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	hooks, err := promhooks.New(reg, "nscache", "app_")
	require.NoError(t, err)

	c, err := nscache.New(context.Background(), nscache.Options{
		Prefix:   "app_",
		Provider: redis.New(redis.Config{Host: mr.Host(), Port: port}),
		Hooks:    hooks,
		Disabled: disabled,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	page := &countingPage{}
	opts := Options{
		AdminAPIKey: testKey,
		PageTTL:     time.Hour,
		RateMax:     5,
		RateWindow:  time.Hour,
		DedupTTL:    5 * time.Minute,
		AdminRate:   1000,
		Presets:     map[string]time.Duration{"page": time.Hour, "temporary": 5 * time.Minute},
	}
	deps := Deps{Cache: c, Pages: page, Metrics: reg}
	if mutate != nil {
		mutate(&opts, &deps)
	}
	srv, err := New(opts, deps)
	require.NoError(t, err)
	return &fixture{mr: mr, cache: c, page: page, srv: srv}
}

func (f *fixture) do(method, target string, body any, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-API-Key", testKey)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPageMissThenHit(t *testing.T) {
	f := newFixture(t, false, nil)

	w := f.do(http.MethodGet, "/?utm=1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "3600", w.Header().Get("X-Cache-TTL"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = f.do(http.MethodGet, "/?utm=1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, PageKey("/?utm=1"), w.Header().Get("X-Cache-Key"))
	assert.Equal(t, "0", w.Header().Get("X-Cache-Age"))
	assert.Contains(t, w.Body.String(), "hello")
	assert.EqualValues(t, 1, f.page.renders.Load())

	f.mr.FastForward(10 * time.Minute)
	w = f.do(http.MethodGet, "/?utm=1", nil, false)
	assert.Equal(t, "600", w.Header().Get("X-Cache-Age"))

	w = f.do(http.MethodGet, "/?utm=2", nil, false)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, f.page.renders.Load())
}

func TestPageRendersWithoutCache(t *testing.T) {
	f := newFixture(t, true, nil)
	for i := 0; i < 2; i++ {
		w := f.do(http.MethodGet, "/", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	}
	assert.EqualValues(t, 2, f.page.renders.Load())
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, false, nil)

	w := f.do(http.MethodGet, "/admin/cache/stats", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[ErrorResponse](t, w).Error)

	w = f.do(http.MethodGet, "/admin/cache/stats?api_key="+testKey, nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/admin/cache/stats", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminThrottle(t *testing.T) {
	f := newFixture(t, false, func(o *Options, _ *Deps) { o.AdminRate = 1 })
	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		codes[f.do(http.MethodGet, "/admin/cache/stats", nil, true).Code]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestAdminClear(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := f.cache.Set(ctx, fmt.Sprintf("k:%02d", i), i, time.Minute)
		require.NoError(t, err)
	}
	f.mr.Set("other_key", "x")

	w := f.do(http.MethodPost, "/admin/cache/clear", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ClearResponse](t, w)
	assert.Equal(t, 25, resp.KeysBefore)
	assert.EqualValues(t, 25, resp.Deleted)
	assert.Equal(t, 0, resp.KeysAfter)
	assert.Len(t, resp.Cleared, 20)
	assert.Equal(t, "k:00", resp.Cleared[0])
	assert.Equal(t, 5, resp.More)
	assert.True(t, f.mr.Exists("other_key"))
}

func TestAdminPurge(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	for _, k := range []string{"user:1", "user:2", "order:1"} {
		_, err := f.cache.Set(ctx, k, k, time.Minute)
		require.NoError(t, err)
	}

	w := f.do(http.MethodDelete, "/admin/cache/keys", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodDelete, "/admin/cache/keys?pattern=user:*", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["deleted"])
}

func TestAdminUnavailable(t *testing.T) {
	f := newFixture(t, true, nil)

	w := f.do(http.MethodPost, "/admin/cache/clear", nil, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(http.MethodGet, "/admin/cache/stats", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nscache.StatusUnavailable, decode[nscache.Stats](t, w).Status)

	w = f.do(http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["cache"])
}

func TestAdminSelftest(t *testing.T) {
	f := newFixture(t, false, nil)

	w := f.do(http.MethodGet, "/admin/cache/selftest?iterations=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/admin/cache/selftest?iterations=5", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decode[map[string]any](t, w)
	bench, _ := rep["benchmark"].(map[string]any)
	assert.EqualValues(t, 5, bench["iterations"])
	assert.Equal(t, "5m0s", rep["test_ttl"])
	assert.Equal(t, map[string]any{"page": "1h0m0s", "temporary": "5m0s"}, rep["presets"])
	assert.Empty(t, f.mr.Keys())
}

func validForm(email string) ContactRequest {
	return ContactRequest{
		Company: "ACME",
		Name:    "Dana",
		Phone:   "+359 2 000 000",
		Email:   email,
		Service: "IBM Storage",
	}
}

func TestContact(t *testing.T) {
	f := newFixture(t, false, nil)

	bad := validForm("not-an-email")
	w := f.do(http.MethodPost, "/api/contact", bad, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/contact", validForm("dana@example.com"), false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ContactResponse](t, w)
	assert.True(t, resp.Success)
	assert.Len(t, resp.ID, 36)

	w = f.do(http.MethodPost, "/api/contact", validForm("DANA@example.com"), false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestContactRateLimit(t *testing.T) {
	f := newFixture(t, false, func(o *Options, _ *Deps) { o.RateMax = 2 })

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, "/api/contact", validForm(fmt.Sprintf("u%d@example.com", i)), false)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := f.do(http.MethodPost, "/api/contact", validForm("u9@example.com"), false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestContactWithoutCache(t *testing.T) {
	f := newFixture(t, true, func(o *Options, _ *Deps) { o.RateMax = 1 })
	for i := 0; i < 3; i++ {
		w := f.do(http.MethodPost, "/api/contact", validForm("same@example.com"), false)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestContactDeliveryFailureAllowsRetry(t *testing.T) {
	relay := &flakyRelay{}
	relay.fails.Store(1)
	f := newFixture(t, false, func(_ *Options, d *Deps) { d.Relay = relay })

	w := f.do(http.MethodPost, "/api/contact", validForm("retry@example.com"), false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = f.do(http.MethodPost, "/api/contact", validForm("retry@example.com"), false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, false, nil)
	f.do(http.MethodGet, "/", nil, false)
	f.do(http.MethodGet, "/", nil, false)

	w := f.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nscache_cache_hits_total{prefix="app_"} 1`)
	assert.Contains(t, w.Body.String(), `nscache_cache_misses_total{prefix="app_"} 1`)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, false, nil)
	w := f.do(http.MethodPost, "/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
