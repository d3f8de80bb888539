// Package web is the request-scoped runtime shared by every handler of a
// built server: the lazily loaded session, flash messages, identity
// resolution, template rendering and a few response helpers.
//
// Middleware installs the runtime for each request. The session is written
// back when the response starts (first WriteHeader or Write), or when the
// handler returns without writing. Changes made after the response has
// started are not persisted.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artpar/waterspout/adapters/metrics"
	"github.com/artpar/waterspout/domain/session"
	"github.com/artpar/waterspout/ports"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Errors returned by the runtime helpers.
var (
	ErrNoRuntime      = errors.New("web: request is not served by a waterspout runtime")
	ErrNoCodec        = errors.New("web: no cookie codec configured")
	ErrHeadersWritten = errors.New("web: response already started")
	ErrNoRenderer     = errors.New("web: no template renderer configured")
)

// CookieOptions are the attributes of the session cookie.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions returns the session cookie defaults.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		Name:     session.CookieName,
		Path:     "/",
		MaxAge:   31 * 24 * time.Hour,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Runtime holds what the request helpers need. One Runtime is shared by all
// requests of a built server and must not be mutated once serving starts.
type Runtime struct {
	Codec    ports.CookieCodec
	Cookie   CookieOptions
	Renderer ports.Renderer
	Loader   IdentityLoader

	LoginURL        string
	StaticURLPrefix string
	ReverseURL      func(name string, params ...string) (string, error)

	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

type ctxKey string

const (
	stateKey ctxKey = "state"
	routeKey ctxKey = "route"
)

// requestState is the per-request mutable state. A request is served by a
// single goroutine, so it carries no lock.
type requestState struct {
	rt      *Runtime
	req     *http.Request
	w       *finalizingWriter
	session *Session

	user       any
	userErr    error
	userLoaded bool
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey).(*requestState)
	return st
}

// Middleware installs rt for each request and persists the session when
// the response starts.
func Middleware(rt *Runtime) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := &requestState{rt: rt}
			fw := &finalizingWriter{ResponseWriter: w, state: st}
			st.w = fw

			r = r.WithContext(context.WithValue(r.Context(), stateKey, st))
			st.req = r

			next.ServeHTTP(fw, r)

			fw.finalize()
		})
	}
}

// ServerHeader sets the Server response header.
func ServerHeader(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", name)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
