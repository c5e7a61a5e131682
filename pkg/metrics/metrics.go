package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Composition metrics
	CompositionsTotal   *prometheus.CounterVec
	CompositionDuration *prometheus.HistogramVec
	FragmentsGenerated  *prometheus.CounterVec

	// Upstream metrics
	UpstreamCallsTotal  *prometheus.CounterVec
	UpstreamAttempts    *prometheus.HistogramVec
	UpstreamDuration    *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec

	// Cache metrics
	CacheRequestsTotal *prometheus.CounterVec

	// Async task metrics
	TasksTotal    *prometheus.CounterVec
	TasksInFlight prometheus.Gauge

	// Error metrics
	NotificationFailures *prometheus.CounterVec
	PanicsTotal          *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "hello_world",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics and registers them on a registry
// owned by the returned Metrics. A disabled config yields a Metrics whose
// recorders are no-ops.
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	registry := prometheus.NewRegistry()
	if !config.Enabled {
		return &Metrics{registry: registry}
	}

	m := &Metrics{
		registry: registry,

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),

		// Composition metrics
		CompositionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "compositions_total",
				Help:      "Total number of compositions by result source",
			},
			[]string{"source"},
		),
		CompositionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "composition_duration_seconds",
				Help:      "Composition duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),
		FragmentsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "fragments_generated_total",
				Help:      "Total number of fragments generated by family and strategy",
			},
			[]string{"family", "strategy"},
		),

		// Upstream metrics
		UpstreamCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "upstream_calls_total",
				Help:      "Total number of upstream invocations by outcome",
			},
			[]string{"upstream", "outcome"},
		),
		UpstreamAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "upstream_attempts",
				Help:      "Attempts made per upstream invocation",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
			[]string{"upstream"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "upstream_duration_seconds",
				Help:      "Upstream invocation duration in seconds, retries included",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"upstream"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"upstream"},
		),

		// Cache metrics
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_requests_total",
				Help:      "Total number of result cache lookups by result",
			},
			[]string{"kind", "result"},
		),

		// Async task metrics
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "async_tasks_total",
				Help:      "Total number of async task transitions",
			},
			[]string{"state"},
		),
		TasksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "async_tasks_in_flight",
				Help:      "Number of async compositions currently running",
			},
		),

		// Error metrics
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "notification_failures_total",
				Help:      "Total number of failed notification deliveries",
			},
			[]string{"channel"},
		),
		PanicsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "panics_total",
				Help:      "Total number of recovered panics",
			},
			[]string{"component"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CompositionsTotal,
		m.CompositionDuration,
		m.FragmentsGenerated,
		m.UpstreamCallsTotal,
		m.UpstreamAttempts,
		m.UpstreamDuration,
		m.CircuitBreakerState,
		m.CacheRequestsTotal,
		m.TasksTotal,
		m.TasksInFlight,
		m.NotificationFailures,
		m.PanicsTotal,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordComposition records a finished composition
func (m *Metrics) RecordComposition(source string, duration time.Duration) {
	if m.CompositionsTotal == nil {
		return
	}

	m.CompositionsTotal.WithLabelValues(source).Inc()
	m.CompositionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordFragment records a fragment produced by a hello or world service
func (m *Metrics) RecordFragment(family, strategy string) {
	if m.FragmentsGenerated == nil {
		return
	}

	m.FragmentsGenerated.WithLabelValues(family, strategy).Inc()
}

// RecordUpstreamCall records one upstream invocation. outcome is one of
// "success", "fallback" or "circuit_open".
func (m *Metrics) RecordUpstreamCall(upstream, outcome string, attempts int, duration time.Duration) {
	if m.UpstreamCallsTotal == nil {
		return
	}

	m.UpstreamCallsTotal.WithLabelValues(upstream, outcome).Inc()
	m.UpstreamAttempts.WithLabelValues(upstream).Observe(float64(attempts))
	m.UpstreamDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// SetCircuitState records the current breaker state of an upstream
func (m *Metrics) SetCircuitState(upstream string, state int) {
	if m.CircuitBreakerState == nil {
		return
	}

	m.CircuitBreakerState.WithLabelValues(upstream).Set(float64(state))
}

// RecordCacheHit records a result cache hit
func (m *Metrics) RecordCacheHit(kind string) {
	if m.CacheRequestsTotal == nil {
		return
	}

	m.CacheRequestsTotal.WithLabelValues(kind, "hit").Inc()
}

// RecordCacheMiss records a result cache miss
func (m *Metrics) RecordCacheMiss(kind string) {
	if m.CacheRequestsTotal == nil {
		return
	}

	m.CacheRequestsTotal.WithLabelValues(kind, "miss").Inc()
}

// RecordTask records an async task transition
func (m *Metrics) RecordTask(state string) {
	if m.TasksTotal == nil {
		return
	}

	m.TasksTotal.WithLabelValues(state).Inc()
}

// TaskStarted increments the in-flight task gauge
func (m *Metrics) TaskStarted() {
	if m.TasksInFlight == nil {
		return
	}

	m.TasksInFlight.Inc()
}

// TaskFinished decrements the in-flight task gauge
func (m *Metrics) TaskFinished() {
	if m.TasksInFlight == nil {
		return
	}

	m.TasksInFlight.Dec()
}

// RecordNotificationFailure records a failed notification delivery
func (m *Metrics) RecordNotificationFailure(channel string) {
	if m.NotificationFailures == nil {
		return
	}

	m.NotificationFailures.WithLabelValues(channel).Inc()
}

// RecordPanic records panic metrics
func (m *Metrics) RecordPanic(component string) {
	if m.PanicsTotal == nil {
		return
	}

	m.PanicsTotal.WithLabelValues(component).Inc()
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		if m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
