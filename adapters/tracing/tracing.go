// Package tracing provides OpenTelemetry span-per-request middleware.
//
// The tracer comes from the global provider unless one is supplied.
// Configure the provider in main() before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package tracing

import (
	"net/http"

	"github.com/artpar/waterspout/adapters/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "waterspout"

// Config configures the middleware.
type Config struct {
	// TracerName is the instrumentation name (default: "waterspout").
	TracerName string

	// Provider overrides the global tracer provider.
	Provider trace.TracerProvider

	// Filter decides which requests are traced. Nil traces everything.
	Filter func(r *http.Request) bool
}

// Option configures the middleware.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithProvider sets the tracer provider.
func WithProvider(p trace.TracerProvider) Option {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithFilter sets the request filter.
func WithFilter(f func(r *http.Request) bool) Option {
	return func(c *Config) {
		c.Filter = f
	}
}

// Middleware starts a server span for every request. The span is stored in
// the request context so handlers can add events with
// trace.SpanFromContext. Responses with a 5xx status mark the span as failed.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}

	provider := cfg.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(cfg.TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Filter != nil && !cfg.Filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.RequestURI()),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, attribute.String("http.request_id", id))
			}

			ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			r = r.WithContext(ctx)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := metrics.RoutePattern(r)
			span.SetName("HTTP " + r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}
