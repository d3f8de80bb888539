// Package metrics provides Prometheus metrics collection for waterspout
// servers.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "waterspout"

// Collector holds all Prometheus metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Session metrics
	SessionSaves    prometheus.Counter
	SessionRejected *prometheus.CounterVec

	// Template metrics
	TemplateRenders *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return newCollector(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	return newCollector(reg, reg)
}

func newCollector(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		SessionSaves: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_saves_total",
				Help:      "Total number of session cookies written",
			},
		),
		SessionRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_rejected_total",
				Help:      "Inbound session cookies treated as empty",
			},
			[]string{"reason"},
		),

		TemplateRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "template_renders_total",
				Help:      "Total number of template renders",
			},
			[]string{"template", "result"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),

		gatherer: g,
	}
}

// SessionSaved records one session cookie write.
func (c *Collector) SessionSaved() {
	if c == nil {
		return
	}
	c.SessionSaves.Inc()
}

// SessionRejectedFor records an inbound cookie that could not be trusted.
func (c *Collector) SessionRejectedFor(reason string) {
	if c == nil {
		return
	}
	c.SessionRejected.WithLabelValues(reason).Inc()
}

// TemplateRendered records a render of name.
func (c *Collector) TemplateRendered(name string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.TemplateRenders.WithLabelValues(name, result).Inc()
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request metrics. The route label is the matched chi
// pattern, so dynamic path segments do not inflate cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.RequestsInFlight.Inc()
		defer c.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := StatusLabel(ww.Status())
		route := RoutePattern(r)

		c.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		c.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// RoutePattern returns the matched chi pattern, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// StatusLabel returns a string label for the status code.
// A handler that never wrote reports 0 and is counted as 2xx.
func StatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200 || status == 0:
		return "2xx"
	default:
		return "other"
	}
}
