// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aqt"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	widgetFailures    *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	droppedValues     *prometheus.CounterVec
	assemblies        *prometheus.CounterVec
	breakerState      prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		widgetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_failures_total",
			Help:      "Widgets rendered without data, by widget type and failure reason.",
		}, []string{"widget", "reason"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "widget_query_duration_seconds",
			Help:      "Histogram of data source query durations by widget type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"widget"}),
		droppedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_dropped_values_total",
			Help:      "Rows ignored while mapping query results, by widget type.",
		}, []string{"widget"}),
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_assemblies_total",
			Help:      "Dashboard assemblies by outcome.",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Data source circuit breaker state (0 closed, 1 half open, 2 open).",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.widgetFailures,
		m.queryDuration,
		m.droppedValues,
		m.assemblies,
		m.breakerState,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// WrapHandler records request count and latency under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WidgetFailed counts a widget rendered without data
func (m *Metrics) WidgetFailed(widget, reason string) {
	if m == nil {
		return
	}
	m.widgetFailures.WithLabelValues(widget, reason).Inc()
}

// QueryObserved records a data source round trip
func (m *Metrics) QueryObserved(widget string, d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(widget).Observe(d.Seconds())
}

// ValuesDropped counts rows the mapper could not use
func (m *Metrics) ValuesDropped(widget string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedValues.WithLabelValues(widget).Add(float64(n))
}

// AssemblyFinished counts a dashboard assembly by outcome
func (m *Metrics) AssemblyFinished(outcome string) {
	if m == nil {
		return
	}
	m.assemblies.WithLabelValues(outcome).Inc()
}

// SetBreakerState records the circuit breaker state
func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(state)
}
