package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/artpar/waterspout/adapters/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingSpan keeps what the middleware writes to it.
type recordingSpan struct {
	noop.Span
	mu     sync.Mutex
	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	span := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	cfg := trace.NewSpanStartConfig(opts...)
	span.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func newRouter(tp trace.TracerProvider, opts ...tracing.Option) chi.Router {
	r := chi.NewRouter()
	r.Use(tracing.Middleware(append(opts, tracing.WithProvider(tp))...))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := trace.SpanFromContext(r.Context()).(*recordingSpan); !ok {
			http.Error(w, "no span", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	return r
}

func TestMiddleware_RecordsSpan(t *testing.T) {
	tr := &recordingTracer{}
	r := newRouter(recordingProvider{tracer: tr})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42?x=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, handler did not see the span", rec.Code)
	}
	if len(tr.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tr.spans))
	}

	span := tr.spans[0]
	if span.name != "HTTP GET /items/{id}" {
		t.Errorf("name = %q", span.name)
	}
	if got := span.attrs["http.route"].AsString(); got != "/items/{id}" {
		t.Errorf("http.route = %q", got)
	}
	if got := span.attrs["http.target"].AsString(); got != "/items/42?x=1" {
		t.Errorf("http.target = %q", got)
	}
	if got := span.attrs["http.status_code"].AsInt64(); got != 200 {
		t.Errorf("http.status_code = %d", got)
	}
	if span.status != codes.Unset {
		t.Errorf("status = %v, want Unset", span.status)
	}
	if !span.ended {
		t.Error("span not ended")
	}
}

func TestMiddleware_ServerErrorMarksSpan(t *testing.T) {
	tr := &recordingTracer{}
	r := newRouter(recordingProvider{tracer: tr})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	if len(tr.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tr.spans))
	}
	if tr.spans[0].status != codes.Error {
		t.Errorf("status = %v, want Error", tr.spans[0].status)
	}
}

func TestMiddleware_Filter(t *testing.T) {
	tr := &recordingTracer{}
	r := newRouter(recordingProvider{tracer: tr}, tracing.WithFilter(func(r *http.Request) bool {
		return r.URL.Path != "/fail"
	}))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	if len(tr.spans) != 0 {
		t.Errorf("spans = %d, want 0 for filtered request", len(tr.spans))
	}
}

func TestMiddleware_GlobalProvider(t *testing.T) {
	h := tracing.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
