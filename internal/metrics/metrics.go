// Package metrics exposes Prometheus collectors for the HTTP surface, dataset
// loading, and assistant calls.
//
// All methods are safe on a nil *Metrics so packages can record
// unconditionally and tests can skip instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Circuit breaker state values reported by the breaker gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Metrics holds the application's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	datasetLoads      *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	assistantRequests *prometheus.CounterVec
	assistantDuration prometheus.Histogram
	assistantTokens   *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	socketClients     prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "energy_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		datasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_dataset_loads_total",
			Help: "Dataset fetch attempts by dataset and outcome (ok, missing, error).",
		}, []string{"dataset", "outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_bundle_cache_hits_total",
			Help: "Dataset bundle cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_bundle_cache_misses_total",
			Help: "Dataset bundle cache misses.",
		}),
		assistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_assistant_requests_total",
			Help: "Assistant calls by outcome (ok, rate_limited, auth_failed, overloaded, generic).",
		}, []string{"outcome"}),
		assistantDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "energy_assistant_request_duration_seconds",
			Help:    "Histogram of assistant call durations.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		assistantTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_assistant_tokens_total",
			Help: "Tokens consumed by assistant calls, by direction (input, output).",
		}, []string{"direction"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energy_circuit_breaker_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		socketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_chat_socket_clients",
			Help: "Currently connected chat WebSocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.datasetLoads,
		m.cacheHits,
		m.cacheMisses,
		m.assistantRequests,
		m.assistantDuration,
		m.assistantTokens,
		m.breakerState,
		m.socketClients,
	)

	return m
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DatasetLoad records one dataset fetch outcome.
func (m *Metrics) DatasetLoad(dataset, outcome string) {
	if m == nil {
		return
	}
	m.datasetLoads.WithLabelValues(dataset, outcome).Inc()
}

// CacheHit records a bundle cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss records a bundle cache miss.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// AssistantCall records one assistant call with its outcome and duration.
func (m *Metrics) AssistantCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.assistantRequests.WithLabelValues(outcome).Inc()
	m.assistantDuration.Observe(d.Seconds())
}

// AssistantTokens records token usage reported by the assistant.
func (m *Metrics) AssistantTokens(input, output int) {
	if m == nil {
		return
	}
	m.assistantTokens.WithLabelValues("input").Add(float64(input))
	m.assistantTokens.WithLabelValues("output").Add(float64(output))
}

// BreakerState records the state of a named circuit breaker.
func (m *Metrics) BreakerState(target string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(target).Set(float64(state))
}

// SocketClients records the number of connected chat sockets.
func (m *Metrics) SocketClients(n int) {
	if m == nil {
		return
	}
	m.socketClients.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Instrument wraps next, recording request count and duration under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
