// Package selftest exercises a live cache end to end: a structured
// write/read/delete check followed by a small throughput benchmark.
package selftest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/unkn0wn-root/nscache"
)

const (
	DefaultIterations = 100
	MaxIterations     = 10000
	probeKey          = "test:connection"
	benchPattern      = "benchmark:*"
	payloadSize       = 1000
	DefaultTTL        = time.Minute
)

type Step struct {
	OK      bool          `json:"ok"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Error   string        `json:"error,omitempty"`
}

type Benchmark struct {
	Iterations int           `json:"iterations"`
	WriteTotal time.Duration `json:"write_total_ns"`
	WriteAvg   time.Duration `json:"write_avg_ns"`
	ReadTotal  time.Duration `json:"read_total_ns"`
	ReadAvg    time.Duration `json:"read_avg_ns"`
	ReadHits   int           `json:"read_hits"`
	CleanedUp  int64         `json:"cleaned_up"`
}

type Report struct {
	Prefix     string            `json:"prefix"`
	DefaultTTL string            `json:"default_ttl"`
	TestTTL    string            `json:"test_ttl"`
	Presets    map[string]string `json:"presets,omitempty"`
	Available  bool              `json:"available"`
	Write      Step              `json:"write"`
	Read       Step              `json:"read"`
	Delete     Step              `json:"delete"`
	Stats      *nscache.Stats    `json:"stats,omitempty"`
	Benchmark  *Benchmark        `json:"benchmark,omitempty"`
}

// Passed reports whether the write, read and delete checks all succeeded.
func (r Report) Passed() bool { return r.Available && r.Write.OK && r.Read.OK && r.Delete.OK }

type probe struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Random    int    `json:"random"`
}

// Runner configures a self-test run.
type Runner struct {
	TTL     time.Duration            // probe and benchmark keys; 0 => DefaultTTL
	Presets map[string]time.Duration // named TTLs echoed in the report
}

// Run checks c with the default Runner.
func Run(ctx context.Context, c nscache.Cache, iterations int) (Report, error) {
	return Runner{}.Run(ctx, c, iterations)
}

// Run checks c and benchmarks iterations writes and reads. iterations <= 0
// uses DefaultIterations; values above MaxIterations are capped. An
// unavailable cache yields a report with only the configuration filled in.
func (r Runner) Run(ctx context.Context, c nscache.Cache, iterations int) (Report, error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rep := Report{
		Prefix:     c.Prefix(),
		DefaultTTL: c.DefaultTTL().String(),
		TestTTL:    ttl.String(),
		Available:  c.Available(),
	}
	if len(r.Presets) > 0 {
		rep.Presets = make(map[string]string, len(r.Presets))
		for name, d := range r.Presets {
			rep.Presets[name] = d.String()
		}
	}
	if !rep.Available {
		return rep, nil
	}

	want := probe{
		Message:   "Hello from the nscache self-test",
		Timestamp: time.Now().UTC().Format(time.DateTime),
		Random:    1000 + rand.IntN(9000),
	}

	start := time.Now()
	ok, err := c.Set(ctx, probeKey, want, ttl)
	if err != nil {
		return rep, fmt.Errorf("selftest write: %w", err)
	}
	rep.Write = Step{OK: ok, Elapsed: time.Since(start)}

	start = time.Now()
	got, ok, err := nscache.GetAs[probe](ctx, c, probeKey)
	rep.Read = Step{OK: err == nil && ok && reflect.DeepEqual(got, want), Elapsed: time.Since(start)}
	if err != nil {
		rep.Read.Error = err.Error()
	}

	start = time.Now()
	ok, err = c.Delete(ctx, probeKey)
	if err != nil {
		return rep, fmt.Errorf("selftest delete: %w", err)
	}
	rep.Delete = Step{OK: ok, Elapsed: time.Since(start)}

	st := c.Stats(ctx)
	rep.Stats = &st

	b, err := bench(ctx, c, iterations, ttl)
	if err != nil {
		return rep, err
	}
	rep.Benchmark = b
	return rep, nil
}

func bench(ctx context.Context, c nscache.Cache, n int, ttl time.Duration) (*Benchmark, error) {
	if n <= 0 {
		n = DefaultIterations
	}
	n = min(n, MaxIterations)
	value := map[string]string{"data": strings.Repeat("x", payloadSize)}
	b := &Benchmark{Iterations: n}

	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := c.Set(ctx, fmt.Sprintf("benchmark:test:%d", i), value, ttl); err != nil {
			return nil, fmt.Errorf("selftest benchmark write: %w", err)
		}
	}
	b.WriteTotal = time.Since(start)

	start = time.Now()
	for i := 0; i < n; i++ {
		if _, ok, _ := c.Get(ctx, fmt.Sprintf("benchmark:test:%d", i)); ok {
			b.ReadHits++
		}
	}
	b.ReadTotal = time.Since(start)

	b.WriteAvg = b.WriteTotal / time.Duration(n)
	b.ReadAvg = b.ReadTotal / time.Duration(n)

	deleted, err := c.DeletePattern(ctx, benchPattern)
	if err != nil {
		return nil, fmt.Errorf("selftest cleanup: %w", err)
	}
	b.CleanedUp = deleted
	return b, nil
}
