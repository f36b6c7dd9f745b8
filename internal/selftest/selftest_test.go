package selftest

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/provider/redis"
)

func newCache(t *testing.T, mr *miniredis.Miniredis, disabled bool) nscache.Cache {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	c, err := nscache.New(context.Background(), nscache.Options{
		Prefix:   "app_",
		Provider: redis.New(redis.Config{Host: mr.Host(), Port: port}),
		Disabled: disabled,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestRun(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("app_keep", "1")
	c := newCache(t, mr, false)

	rep, err := Run(context.Background(), c, 25)
	require.NoError(t, err)

	assert.True(t, rep.Passed())
	assert.Equal(t, "app_", rep.Prefix)
	require.NotNil(t, rep.Benchmark)
	assert.Equal(t, 25, rep.Benchmark.Iterations)
	assert.Equal(t, 25, rep.Benchmark.ReadHits)
	assert.EqualValues(t, 25, rep.Benchmark.CleanedUp)
	require.NotNil(t, rep.Stats)
	assert.Equal(t, []string{"keep"}, rep.Stats.Keys)

	assert.Equal(t, []string{"app_keep"}, mr.Keys(), "probe and benchmark keys must be cleaned up")
}

func TestRunCapsIterations(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, false)

	rep, err := Run(context.Background(), c, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, rep.Benchmark.Iterations)
}

func TestRunUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newCache(t, mr, true)

	rep, err := Run(context.Background(), c, 10)
	require.NoError(t, err)
	assert.False(t, rep.Passed())
	assert.Nil(t, rep.Benchmark)
	assert.Equal(t, "24h0m0s", rep.DefaultTTL)
}

// ttlRecorder records the TTL of every Set.
type ttlRecorder struct {
	nscache.Cache
	mu   sync.Mutex
	ttls map[time.Duration]int
}

func (c *ttlRecorder) Set(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	c.ttls[ttl]++
	c.mu.Unlock()
	return c.Cache.Set(ctx, key, v, ttl)
}

func TestRunnerTTLAndPresets(t *testing.T) {
	mr := miniredis.RunT(t)
	c := &ttlRecorder{Cache: newCache(t, mr, false), ttls: map[time.Duration]int{}}

	r := Runner{
		TTL:     5 * time.Minute,
		Presets: map[string]time.Duration{"api": time.Hour, "temporary": 5 * time.Minute},
	}
	rep, err := r.Run(context.Background(), c, 3)
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	assert.Equal(t, "5m0s", rep.TestTTL)
	assert.Equal(t, map[string]string{"api": "1h0m0s", "temporary": "5m0s"}, rep.Presets)
	assert.Equal(t, map[time.Duration]int{5 * time.Minute: 4}, c.ttls)

	def, err := Run(context.Background(), c, 1)
	require.NoError(t, err)
	assert.Equal(t, "1m0s", def.TestTTL)
	assert.Nil(t, def.Presets)
}
