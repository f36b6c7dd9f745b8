// Package promhooks exports cache events as Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/nscache"
)

// Hooks counts cache events. All collectors are registered on the Registerer
// passed to New.
type Hooks struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	storeErrors *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	fallbacks   prometheus.Counter
	available   prometheus.Gauge
}

var _ nscache.Hooks = (*Hooks)(nil)

// New builds and registers the collectors. prefix becomes a constant label so
// several caches can share one registry.
func New(reg prometheus.Registerer, namespace, prefix string) (*Hooks, error) {
	labels := prometheus.Labels{"prefix": prefix}
	h := &Hooks{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_hits_total",
			Help:        "Reads that found a value",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_misses_total",
			Help:        "Reads that found nothing",
			ConstLabels: labels,
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_store_errors_total",
			Help:        "Store calls that failed and were turned into misses",
			ConstLabels: labels,
		}, []string{"op"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_skipped_total",
			Help:        "Operations skipped because the cache was unavailable",
			ConstLabels: labels,
		}, []string{"op"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_decode_fallbacks_total",
			Help:        "Framed values returned raw after a decode failure",
			ConstLabels: labels,
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cache_available",
			Help:        "1 while the cache store is reachable",
			ConstLabels: labels,
		}),
	}
	for _, c := range []prometheus.Collector{h.hits, h.misses, h.storeErrors, h.skipped, h.fallbacks, h.available} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// SetAvailable seeds the availability gauge; ConnectionChanged only reports
// transitions.
func (h *Hooks) SetAvailable(ok bool) { h.available.Set(b2f(ok)) }

func (h *Hooks) Hit(string)                       { h.hits.Inc() }
func (h *Hooks) Miss(string)                      { h.misses.Inc() }
func (h *Hooks) StoreError(op, _ string, _ error) { h.storeErrors.WithLabelValues(op).Inc() }
func (h *Hooks) Skipped(op string)                { h.skipped.WithLabelValues(op).Inc() }
func (h *Hooks) DecodeFallback(string, error)     { h.fallbacks.Inc() }
func (h *Hooks) ConnectionChanged(ok bool)        { h.SetAvailable(ok) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
