// Package metrics provides Prometheus instrumentation for the post gate.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkingovr/postguard/api"
)

const namespace = "postguard"

// Metrics holds the gate collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	PostsTotal     *prometheus.CounterVec
	BlockedTotal   *prometheus.CounterVec
	GateDuration   prometheus.Histogram
	UpstreamErrors prometheus.Counter
}

// New creates a registry with the gate collectors plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PostsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Total post submissions gated, by verdict.",
		}, []string{"verdict"}),

		BlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_total",
			Help:      "Total posts blocked by the content classifier, by category.",
		}, []string{"category"}),

		GateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_duration_seconds",
			Help:      "Time spent deciding a post, excluding operator review.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total failures forwarding allowed posts upstream.",
		}),
	}

	m.registry.MustRegister(
		m.PostsTotal,
		m.BlockedTotal,
		m.GateDuration,
		m.UpstreamErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordDecision counts one gated post.
func (m *Metrics) RecordDecision(verdict api.Verdict, category api.Category, elapsed time.Duration) {
	m.PostsTotal.WithLabelValues(string(verdict)).Inc()
	if category != "" {
		m.BlockedTotal.WithLabelValues(string(category)).Inc()
	}
	m.GateDuration.Observe(elapsed.Seconds())
}

// RecordUpstreamError counts a failed forward.
func (m *Metrics) RecordUpstreamError() {
	m.UpstreamErrors.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
