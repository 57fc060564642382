package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolbox"

// PoolSource reports pool counters.
type PoolSource interface {
	Stats() mcpclient.PoolStats
}

// Metrics records dispatch outcomes and durations.
type Metrics struct {
	registry   *prometheus.Registry
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ registry.Recorder = (*Metrics)(nil)

// NewMetrics creates the collectors on a fresh registry, including Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of capability dispatches by outcome",
			},
			[]string{"tool", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Duration of capability dispatches",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
	}
	m.registry.MustRegister(
		m.dispatches,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDispatch implements registry.Recorder.
func (m *Metrics) ObserveDispatch(name, outcome string, elapsed time.Duration) {
	m.dispatches.WithLabelValues(name, outcome).Inc()
	m.duration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// TrackPool exports gauges and counters read from pool on every scrape.
func (m *Metrics) TrackPool(pool PoolSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "open_connections",
			Help:      "External server connections currently pooled",
		}, func() float64 { return float64(pool.Stats().Open) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "spawns_total",
			Help:      "External server processes started",
		}, func() float64 { return float64(pool.Stats().Spawns) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "evictions_total",
			Help:      "Pooled connections discarded for idleness, errors or config changes",
		}, func() float64 { return float64(pool.Stats().Evictions) }),
	)
}

// Registry exposes the underlying registry, e.g. for tests or extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
