package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mermaidai/drive/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager defines the interface for metrics management
type Manager interface {
	// HTTP Metrics
	RecordHTTPRequest(method, route, status string, duration time.Duration)

	// Namespace Metrics
	RecordNamespaceOperation(operation, outcome string, duration time.Duration)
	RecordKeys(operation, result string, count int)

	// System Metrics
	UpdateSystemMetrics(cpuUsage, memoryUsage float64)

	// Export
	Handler() http.Handler
	IsHealthy() bool

	// HTTP Middleware
	Middleware() func(http.Handler) http.Handler

	// Lifecycle
	Start(ctx context.Context) error
	Stop() error
}

const metricsNamespace = "drive"

// metricsManager implements the Manager interface using Prometheus
type metricsManager struct {
	config   config.MetricsConfig
	registry *prometheus.Registry
	system   *SystemMetricsTracker

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Namespace Metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	keysTotal         *prometheus.CounterVec

	// System Metrics
	systemCPUUsage    prometheus.Gauge
	systemMemoryUsage prometheus.Gauge

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.RWMutex
}

// NewManager creates a new metrics manager
func NewManager(cfg config.MetricsConfig) Manager {
	if !cfg.Enable {
		return &noopManager{}
	}

	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	if cfg.SystemInterval <= 0 {
		cfg.SystemInterval = 15 * time.Second
	}

	manager := &metricsManager{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		system:   NewSystemMetrics(),
	}

	manager.initializeMetrics()
	manager.registerMetrics()
	return manager
}

// initializeMetrics sets up all Prometheus metrics
func (m *metricsManager) initializeMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "namespace",
			Name:      "operations_total",
			Help:      "Total number of namespace operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "namespace",
			Name:      "operation_duration_seconds",
			Help:      "Namespace operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	m.keysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "namespace",
			Name:      "keys_total",
			Help:      "Keys processed by bulk folder operations",
		},
		[]string{"operation", "result"},
	)

	m.systemCPUUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "system",
			Name:      "cpu_used_percent",
			Help:      "Host CPU usage percentage",
		},
	)

	m.systemMemoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "system",
			Name:      "memory_used_percent",
			Help:      "Host memory usage percentage",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (m *metricsManager) registerMetrics() {
	collectors := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.operationsTotal,
		m.operationDuration,
		m.keysTotal,
		m.systemCPUUsage,
		m.systemMemoryUsage,
	}

	for _, c := range collectors {
		m.registry.MustRegister(c)
	}
}

func (m *metricsManager) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *metricsManager) RecordNamespaceOperation(operation, outcome string, duration time.Duration) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *metricsManager) RecordKeys(operation, result string, count int) {
	if count <= 0 {
		return
	}
	m.keysTotal.WithLabelValues(operation, result).Add(float64(count))
}

func (m *metricsManager) UpdateSystemMetrics(cpuUsage, memoryUsage float64) {
	m.systemCPUUsage.Set(cpuUsage)
	m.systemMemoryUsage.Set(memoryUsage)
}

func (m *metricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsManager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started
}

// Middleware records every request under its route template so label
// cardinality does not grow with user paths
func (m *metricsManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.RecordHTTPRequest(r.Method, routeLabel(r), strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Start begins sampling host CPU and memory into the system gauges
func (m *metricsManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("metrics manager already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	go m.system.Run(ctx, m.config.SystemInterval, m.UpdateSystemMetrics, m.done)
	return nil
}

func (m *metricsManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return fmt.Errorf("metrics manager not started")
	}

	m.cancel()
	<-m.done
	m.started = false
	return nil
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// noopManager is a no-op implementation when metrics are disabled
type noopManager struct{}

func (n *noopManager) RecordHTTPRequest(method, route, status string, duration time.Duration) {}
func (n *noopManager) RecordNamespaceOperation(operation, outcome string, duration time.Duration) {
}
func (n *noopManager) RecordKeys(operation, result string, count int)     {}
func (n *noopManager) UpdateSystemMetrics(cpuUsage, memoryUsage float64) {}
func (n *noopManager) Handler() http.Handler                             { return http.NotFoundHandler() }
func (n *noopManager) IsHealthy() bool                                   { return true }
func (n *noopManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}
func (n *noopManager) Start(ctx context.Context) error { return nil }
func (n *noopManager) Stop() error                     { return nil }
