package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := filepath.Join(dir, "nscache.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"cache:\n  host: "+mr.Host()+"\n  port: "+mr.Port()+"\n  prefix: cli_\nlog:\n  level: error\n"), 0o600))
	for _, k := range []string{"CACHE_HOST", "CACHE_PORT", "CACHE_PREFIX", "CACHE_ENABLED", "ENVIRONMENT", "LOG_LEVEL", "LOG_BACKEND"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return mr, cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFlushAndPurge(t *testing.T) {
	mr, cfg := setup(t)
	mr.Set("cli_user:1", "a")
	mr.Set("cli_user:2", "b")
	mr.Set("cli_page:1", "c")
	mr.Set("other_user:1", "d")

	out, err := run(t, "--config", cfg, "purge", "user:*")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 2 keys")

	out, err = run(t, "--config", cfg, "flush")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 keys")
	assert.Equal(t, []string{"other_user:1"}, mr.Keys())
}

func TestTTLAndPrefixOverride(t *testing.T) {
	mr, cfg := setup(t)
	mr.Set("alt_counter", "3")
	mr.Set("alt_page", "x")
	mr.SetTTL("alt_page", 90*time.Second)

	out, err := run(t, "--config", cfg, "--prefix", "alt_", "ttl", "counter")
	require.NoError(t, err)
	assert.Contains(t, out, "counter: no expiry")

	out, err = run(t, "--config", cfg, "--prefix", "alt_", "ttl", "page")
	require.NoError(t, err)
	assert.Contains(t, out, "page: 1m30s")

	out, err = run(t, "--config", cfg, "--prefix", "alt_", "ttl", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "missing: not found")
}

func TestStatsAndSelftest(t *testing.T) {
	mr, cfg := setup(t)
	mr.Set("cli_a", "1")

	out, err := run(t, "--config", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_keys": 1`)

	out, err = run(t, "--config", cfg, "selftest", "--iterations", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"iterations": 3`)
	assert.Contains(t, out, `"test_ttl": "5m0s"`)
	assert.Contains(t, out, `"session": "2h0m0s"`)
}

func TestUnreachableStore(t *testing.T) {
	mr, cfg := setup(t)
	mr.Close()

	_, err := run(t, "--config", cfg, "stats")
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnavailable)
}
