package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the proxy's Prometheus collectors. Each instance carries
// its own registry so construction is repeatable and nothing registers
// against global state.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	activeRequests  prometheus.Gauge
}

// NewMetrics creates and registers the proxy collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_proxy_requests_total",
				Help: "Total number of proxied chat completion requests",
			},
			[]string{"model", "provider", "status"}, // status: success|error
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_proxy_request_duration_seconds",
				Help:    "End-to-end request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model", "provider"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_proxy_tokens_total",
				Help: "Total tokens processed",
			},
			[]string{"model", "provider", "token_type"}, // token_type: prompt|completion
		),

		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_proxy_cost_usd_total",
				Help: "Estimated cumulative cost in USD",
			},
			[]string{"model", "provider"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_proxy_errors_total",
				Help: "Total number of failed requests",
			},
			[]string{"model", "provider", "error_type"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "llm_proxy_active_requests",
				Help: "Number of requests currently in flight",
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.tokensTotal,
		m.costTotal,
		m.errorsTotal,
		m.activeRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the scrape endpoint handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted marks a request in flight
func (m *Metrics) RequestStarted() {
	m.activeRequests.Inc()
}

// RequestFinished marks a request complete
func (m *Metrics) RequestFinished() {
	m.activeRequests.Dec()
}

// RecordRequest records the outcome and duration of a proxied request
func (m *Metrics) RecordRequest(model, provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.requestsTotal.WithLabelValues(model, provider, status).Inc()
	m.requestDuration.WithLabelValues(model, provider).Observe(duration.Seconds())
}

// RecordUsage records token counts and estimated cost for a completed
// request
func (m *Metrics) RecordUsage(model, provider string, promptTokens, completionTokens int, cost float64) {
	if promptTokens > 0 {
		m.tokensTotal.WithLabelValues(model, provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokensTotal.WithLabelValues(model, provider, "completion").Add(float64(completionTokens))
	}
	if cost > 0 {
		m.costTotal.WithLabelValues(model, provider).Add(cost)
	}
}

// RecordError records a failed request by error type
func (m *Metrics) RecordError(model, provider, errorType string) {
	m.errorsTotal.WithLabelValues(model, provider, errorType).Inc()
}
