// Package guard provides Prometheus-backed metrics.
package guard

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a dedicated registry.
type PrometheusMetrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	violations  *prometheus.CounterVec
	blocks      *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	failOpens   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewPrometheusMetrics constructs a recorder with its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &PrometheusMetrics{
		registry: registry,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_evaluations_total",
			Help: "Rate limit evaluations by result and window.",
		}, []string{"result", "window", "region"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_violations_total",
			Help: "Recorded rule violations.",
		}, []string{"region"}),
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_blocks_total",
			Help: "Blocklist entries written by source.",
		}, []string{"source", "region"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_store_errors_total",
			Help: "KV store operation failures.",
		}, []string{"op", "region"}),
		failOpens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guard_fail_open_total",
			Help: "Requests admitted because the store was unavailable.",
		}, []string{"region"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guard_operation_duration_seconds",
			Help:    "Operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "region"}),
	}
}

// IncEvaluate increments an evaluation counter.
func (m *PrometheusMetrics) IncEvaluate(result string, window string, region string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(result, window, region).Inc()
}

// IncViolation increments the violation counter.
func (m *PrometheusMetrics) IncViolation(region string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(region).Inc()
}

// IncBlock increments block counters by source.
func (m *PrometheusMetrics) IncBlock(source string, region string) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(source, region).Inc()
}

// IncStoreError increments store error counters.
func (m *PrometheusMetrics) IncStoreError(op string, region string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op, region).Inc()
}

// IncFailOpen increments the fail-open counter.
func (m *PrometheusMetrics) IncFailOpen(region string) {
	if m == nil {
		return
	}
	m.failOpens.WithLabelValues(region).Inc()
}

// ObserveLatency tracks latency measurements.
func (m *PrometheusMetrics) ObserveLatency(op string, d time.Duration, region string) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(op, region).Observe(d.Seconds())
}

// Handler returns a scrape handler for the registry.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
