// Package observability provides Prometheus metrics for the simulator.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the simulator's Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	chaosInjections *prometheus.CounterVec
	rateLimitHits   prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	const namespace = "llmsim"
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total requests by model, endpoint, and status",
		}, []string{"model", "endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"model", "endpoint"}),

		tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total simulated tokens by model and type (prompt/completion)",
		}, []string{"model", "type"}),

		activeRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Requests currently in flight",
		}),

		chaosInjections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chaos_injections_total",
			Help:      "Chaos errors injected by type",
		}, []string{"type"}),

		rateLimitHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests denied by the security rate limiter",
		}),
	}
}

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(model, endpoint, status string, seconds float64) {
	m.requestsTotal.WithLabelValues(model, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(model, endpoint).Observe(seconds)
}

// RecordTokens records token totals for one request.
func (m *Metrics) RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		m.tokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.tokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// RequestStarted bumps the in-flight gauge.
func (m *Metrics) RequestStarted() {
	m.activeRequests.Inc()
}

// RequestFinished drops the in-flight gauge.
func (m *Metrics) RequestFinished() {
	m.activeRequests.Dec()
}

// RecordChaosInjection counts an injected chaos error.
func (m *Metrics) RecordChaosInjection(errType string) {
	m.chaosInjections.WithLabelValues(errType).Inc()
}

// RecordRateLimitHit counts a rate limiter denial.
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Inc()
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
