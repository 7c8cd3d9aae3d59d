// Package metrics provides Prometheus metrics for the vision board service.
//
// A nil *Manager is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers metrics on the given registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.runtime = true
	}
}

// Manager owns the service's Prometheus collectors.
type Manager struct {
	namespace string
	registry  *prometheus.Registry
	runtime   bool

	boardSaves      *prometheus.CounterVec
	quotaDenials    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayErrors   *prometheus.CounterVec
	editorSessions  prometheus.Gauge
	sharesPublished prometheus.Counter
	shareThrottled  prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "visionboard",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.boardSaves = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "board_saves_total",
		Help:      "Boards persisted, by kind (create or update)",
	}, []string{"kind"})

	m.quotaDenials = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "quota_denials_total",
		Help:      "Actions refused by the quota policy, by reason",
	}, []string{"reason"})

	m.gatewayDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "operation_duration_seconds",
		Help:      "Persistence gateway latency by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	m.gatewayErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "errors_total",
		Help:      "Persistence gateway failures by operation and code",
	}, []string{"operation", "code"})

	m.editorSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "editor",
		Name:      "sessions_active",
		Help:      "Open editor sessions",
	})

	m.sharesPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "shares_published_total",
		Help:      "Share links published",
	})

	m.shareThrottled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "shares_throttled_total",
		Help:      "Share publishes refused by the per-owner rate limit",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// BoardSaved counts a persisted board. created is true for first saves.
func (m *Manager) BoardSaved(created bool) {
	if m == nil {
		return
	}
	kind := "update"
	if created {
		kind = "create"
	}
	m.boardSaves.WithLabelValues(kind).Inc()
}

// QuotaDenied counts a quota refusal.
func (m *Manager) QuotaDenied(reason string) {
	if m == nil {
		return
	}
	m.quotaDenials.WithLabelValues(reason).Inc()
}

// ObserveGateway records the latency of a gateway operation, and its failure
// code when code is non-empty.
func (m *Manager) ObserveGateway(operation string, started time.Time, code string) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if code != "" {
		m.gatewayErrors.WithLabelValues(operation, code).Inc()
	}
}

// SetEditorSessions sets the number of open editor sessions.
func (m *Manager) SetEditorSessions(n int) {
	if m == nil {
		return
	}
	m.editorSessions.Set(float64(n))
}

// SharePublished counts a published share link.
func (m *Manager) SharePublished() {
	if m == nil {
		return
	}
	m.sharesPublished.Inc()
}

// ShareThrottled counts a rate-limited publish.
func (m *Manager) ShareThrottled() {
	if m == nil {
		return
	}
	m.shareThrottled.Inc()
}

// Middleware records request counts and latency keyed by chi route pattern,
// so "/api/v1/boards/{id}" is one series regardless of the id.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
