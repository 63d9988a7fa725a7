package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teilomillet/chatrelay/errors"
)

// Metrics encapsulates Prometheus metrics for the relay. All methods are
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec
	UpstreamCalls   *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec
	Invocations     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatrelay_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_rate_limit_hits_total",
				Help: "Total number of rate limit hits by endpoint",
			},
			[]string{"endpoint"},
		),
		UpstreamCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_upstream_call_duration_seconds",
				Help:    "Duration of calls to the generation service by operation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_upstream_errors_total",
				Help: "Failed calls to the generation service by operation",
			},
			[]string{"operation"},
		),
		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_invocations_total",
				Help: "Chat invocations by outcome (success or error type)",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one call to the generation service.
func (m *Metrics) ObserveCall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.UpstreamErrors.WithLabelValues(operation).Inc()
	}
}

// ObserveInvocation records the outcome of one chat invocation.
func (m *Metrics) ObserveInvocation(err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.Invocations.WithLabelValues("success").Inc()
		return
	}
	errType := string(errors.TypeOf(err))
	m.Invocations.WithLabelValues(errType).Inc()
	m.ErrorsTotal.WithLabelValues(errType).Inc()
}
