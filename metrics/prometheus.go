// Package metrics provides Prometheus metrics for the roster server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store operation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Manager owns the roster collectors and the registry they live in.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeOperations       *prometheus.CounterVec
	storeOperationLatency *prometheus.HistogramVec

	studentsTotal prometheus.Gauge
	coursesTotal  prometheus.Gauge
}

var (
	globalMu      sync.RWMutex
	globalManager = NewManager() //nolint:gochecknoglobals // process-wide metrics
)

// NewManager creates a Manager on its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roster",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   m.histogramBuckets,
		},
		[]string{"route", "method"},
	)
	m.storeOperations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Data access operations by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	m.storeOperationLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "store",
			Name:      "operation_duration_ms",
			Help:      "Data access operation latency in milliseconds.",
			Buckets:   m.histogramBuckets,
		},
		[]string{"operation"},
	)
	m.studentsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "students_total",
		Help:      "Students currently on the roster.",
	})
	m.coursesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "courses_total",
		Help:      "Courses currently on the roster.",
	})
}

// RecordHTTPRequest counts one request and observes its latency.
func (m *Manager) RecordHTTPRequest(route, method, status string, durationMs float64) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(durationMs)
}

// RecordStoreOperation counts one store call and observes its latency.
func (m *Manager) RecordStoreOperation(operation, outcome string, durationMs float64) {
	m.storeOperations.WithLabelValues(operation, outcome).Inc()
	m.storeOperationLatency.WithLabelValues(operation).Observe(durationMs)
}

// SetRosterSize publishes the current roster sizes.
func (m *Manager) SetRosterSize(students, courses int) {
	m.studentsTotal.Set(float64(students))
	m.coursesTotal.Set(float64(courses))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Default returns the process-wide manager.
func Default() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// SetDefault replaces the process-wide manager.
func SetDefault(m *Manager) {
	if m == nil {
		return
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
}

// RecordHTTPRequest records on the default manager.
func RecordHTTPRequest(route, method, status string, durationMs float64) {
	Default().RecordHTTPRequest(route, method, status, durationMs)
}

// RecordStoreOperation records on the default manager.
func RecordStoreOperation(operation, outcome string, durationMs float64) {
	Default().RecordStoreOperation(operation, outcome, durationMs)
}

// SetRosterSize records on the default manager.
func SetRosterSize(students, courses int) {
	Default().SetRosterSize(students, courses)
}
