// Package observability holds the Prometheus instruments shared by the
// engine and the request middleware.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures Metrics.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "fastexpress".
	Namespace string
	// Registry receives the collectors. Defaults to a new registry.
	Registry *prometheus.Registry
	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64
	// SlowThreshold marks requests slower than this as slow. Zero disables it.
	SlowThreshold time.Duration
}

// Metrics records request counts, latencies and in-flight requests.
type Metrics struct {
	registry *prometheus.Registry
	slow     time.Duration

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	slowTotal *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// New registers the request instruments.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "fastexpress"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,
		slow:     cfg.SlowThreshold,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to response flush.",
			Buckets:   cfg.Buckets,
		}, []string{"method", "route"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests dispatched but not yet answered.",
		}),
		slowTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "slow_requests_total",
			Help:      "Requests slower than the configured threshold.",
		}, []string{"method", "route"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "server_errors_total",
			Help:      "Responses with a 5xx status.",
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the instruments are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Register adds an extra collector, such as the engine's.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// Start marks a request as in flight. The returned func records it.
func (m *Metrics) Start() func(method, route string, status int) {
	m.inFlight.Inc()
	start := time.Now()
	return func(method, route string, status int) {
		m.inFlight.Dec()
		m.Observe(method, route, status, time.Since(start))
	}
}

// Observe records a finished request.
func (m *Metrics) Observe(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
	if status >= 500 {
		m.errors.WithLabelValues(method, route).Inc()
	}
	if m.slow > 0 && d > m.slow {
		m.slowTotal.WithLabelValues(method, route).Inc()
	}
}
