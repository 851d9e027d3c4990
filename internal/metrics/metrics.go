// Package metrics holds the Prometheus collectors for builds and the dev
// loop. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "statikapi").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for module loads.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors. A new registry if nil.
	Registry *prometheus.Registry

	// ProcessCollectors adds Go runtime and process collectors.
	ProcessCollectors bool
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the module load histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(c *Config) {
		c.ProcessCollectors = true
	}
}

// Metrics is the set of statikapi collectors.
type Metrics struct {
	registry *prometheus.Registry

	routesEmitted *prometheus.CounterVec
	routeFailures *prometheus.CounterVec
	routesSkipped prometheus.Counter
	routesRemoved prometheus.Counter
	moduleLoad    *prometheus.HistogramVec
	buildDuration prometheus.Histogram
	devEvents     *prometheus.CounterVec
	reloadClients prometheus.Gauge
}

// New registers the collectors.
//
// Metrics:
//   - statikapi_routes_emitted_total{type}: artifacts written
//   - statikapi_route_failures_total{kind}: routes or files that failed
//   - statikapi_routes_skipped_total: parameterized routes with no concrete paths
//   - statikapi_routes_removed_total: artifacts retracted by the dev loop
//   - statikapi_module_load_duration_seconds{op}: import, data and paths calls
//   - statikapi_build_duration_seconds: full builds
//   - statikapi_dev_events_total{op}: file events handled by the dev loop
//   - statikapi_live_reload_clients: connected live-reload clients
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "statikapi",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.ProcessCollectors {
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(cfg.Registry)
	return &Metrics{
		registry: cfg.Registry,

		routesEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "routes_emitted_total",
			Help:        "Total number of artifacts written, by route type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type"}),

		routeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "route_failures_total",
			Help:        "Total number of route failures, by error kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),

		routesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "routes_skipped_total",
			Help:        "Total number of parameterized routes that enumerated no paths",
			ConstLabels: cfg.ConstLabels,
		}),

		routesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "routes_removed_total",
			Help:        "Total number of artifacts removed by the dev loop",
			ConstLabels: cfg.ConstLabels,
		}),

		moduleLoad: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "module_load_duration_seconds",
			Help:        "Module import and hook call duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"op"}),

		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "build_duration_seconds",
			Help:        "Full build duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		devEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "dev_events_total",
			Help:        "Total number of file events handled by the dev loop",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op"}),

		reloadClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "live_reload_clients",
			Help:        "Number of connected live-reload clients",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Registry returns the registry the collectors live in.
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

// RouteEmitted counts one written artifact.
func (m *Metrics) RouteEmitted(routeType string) {
	if m == nil {
		return
	}
	m.routesEmitted.WithLabelValues(routeType).Inc()
}

// RouteFailed counts one failed route or file.
func (m *Metrics) RouteFailed(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.routeFailures.WithLabelValues(kind).Inc()
}

// RouteSkipped counts a parameterized route that produced no paths.
func (m *Metrics) RouteSkipped() {
	if m == nil {
		return
	}
	m.routesSkipped.Inc()
}

// RoutesRemoved counts retracted artifacts.
func (m *Metrics) RoutesRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.routesRemoved.Add(float64(n))
}

// ObserveLoad records a module operation ("import", "data" or "paths").
func (m *Metrics) ObserveLoad(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.moduleLoad.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveBuild records a full build.
func (m *Metrics) ObserveBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
}

// DevEvent counts a file event ("add", "change", "remove").
func (m *Metrics) DevEvent(op string) {
	if m == nil {
		return
	}
	m.devEvents.WithLabelValues(op).Inc()
}

// SetReloadClients sets the live-reload client gauge.
func (m *Metrics) SetReloadClients(n int) {
	if m == nil {
		return
	}
	m.reloadClients.Set(float64(n))
}
