// Package metrics keeps the Prometheus collectors of a single App. Every method is safe to
// be called on a nil *Metrics, so components may be constructed without them.
package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "lingdar"

// Cache names used as label values.
const (
	FileCache   = "file"
	ObjectStore = "object"
)

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    prometheus.Histogram
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheBytes  *prometheus.GaugeVec
	evictions   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed requests by method and response status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent from the parsed request head till the response being written.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups served from the cache.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that had to touch the disk.",
		}, []string{"cache"}),
		cacheBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size_bytes",
			Help:      "Bytes currently held by the cache.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries dropped by sweeps.",
		}, []string{"cache"}),
	}

	m.registry.MustRegister(m.requests, m.duration, m.cacheHits, m.cacheMisses, m.cacheBytes, m.evictions)

	return m
}

func (m *Metrics) Request(method string, code int, took time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.Observe(took.Seconds())
}

func (m *Metrics) Hit(cache string) {
	if m != nil {
		m.cacheHits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) Miss(cache string) {
	if m != nil {
		m.cacheMisses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) Evicted(cache string, n int) {
	if m != nil && n > 0 {
		m.evictions.WithLabelValues(cache).Add(float64(n))
	}
}

func (m *Metrics) Size(cache string, bytes int64) {
	if m != nil {
		m.cacheBytes.WithLabelValues(cache).Set(float64(bytes))
	}
}

// Registry exposes the underlying registry, so more collectors can be attached.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText renders all the gathered metrics in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, family := range families {
		if err = enc.Encode(family); err != nil {
			return err
		}
	}

	return nil
}
