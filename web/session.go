package web

import (
	"net/http"
	"strings"

	"github.com/artpar/waterspout/adapters/securecookie"
	"github.com/artpar/waterspout/domain/session"
)

// Session is the request's view of the session cookie. It is created on
// first access and only then written back.
type Session struct {
	values session.Values
	state  *requestState
}

// SessionFrom returns the request's session, loading it from the cookie on
// first access. A missing, tampered, expired or undecodable cookie yields an
// empty session. Outside Middleware a detached session is returned that is
// never persisted.
func SessionFrom(r *http.Request) *Session {
	st := stateFrom(r.Context())
	if st == nil {
		return &Session{values: session.New()}
	}
	if st.session == nil {
		st.session = &Session{values: st.rt.load(r), state: st}
	}
	return st.session
}

func (rt *Runtime) load(r *http.Request) session.Values {
	c, err := r.Cookie(rt.Cookie.Name)
	if err != nil || c.Value == "" {
		return session.New()
	}
	if rt.Codec == nil {
		return session.New()
	}

	v, err := rt.Codec.Decode(rt.Cookie.Name, c.Value)
	if err != nil {
		reason := "error"
		if securecookie.IsDecodeError(err) {
			reason = "invalid"
		}
		rt.Metrics.SessionRejectedFor(reason)
		rt.Logger.Debug().Err(err).Str("reason", reason).Msg("session cookie rejected")
		return session.New()
	}
	return v
}

// Get returns the value for key, or nil.
func (s *Session) Get(key string) any { return s.values.Get(key) }

// Lookup returns the value for key and whether it was present.
func (s *Session) Lookup(key string) (any, bool) { return s.values.Lookup(key) }

// Has reports whether key is present.
func (s *Session) Has(key string) bool { return s.values.Has(key) }

// Set stores a JSON-serializable value.
func (s *Session) Set(key string, value any) { s.values.Set(key, value) }

// Delete removes key.
func (s *Session) Delete(key string) { s.values.Delete(key) }

// Clear removes every key.
func (s *Session) Clear() { s.values.Clear() }

// Values exposes the underlying mapping.
func (s *Session) Values() session.Values { return s.values }

// Save writes the session cookie onto the response, replacing any session
// cookie already set in this response. It runs automatically when the
// response starts; calling it earlier is allowed and the last call wins.
func (s *Session) Save() error {
	st := s.state
	if st == nil {
		return ErrNoRuntime
	}
	if st.w.started {
		return ErrHeadersWritten
	}
	return st.saveTo(st.w.ResponseWriter.Header())
}

func (st *requestState) saveTo(h http.Header) error {
	rt := st.rt
	if rt.Codec == nil {
		return ErrNoCodec
	}

	value, err := rt.Codec.Encode(rt.Cookie.Name, st.session.values)
	if err != nil {
		return err
	}

	removeCookie(h, rt.Cookie.Name)
	c := &http.Cookie{
		Name:     rt.Cookie.Name,
		Value:    value,
		Path:     rt.Cookie.Path,
		Domain:   rt.Cookie.Domain,
		Secure:   rt.Cookie.Secure,
		HttpOnly: rt.Cookie.HTTPOnly,
		SameSite: rt.Cookie.SameSite,
	}
	if rt.Cookie.MaxAge > 0 {
		c.MaxAge = int(rt.Cookie.MaxAge.Seconds())
	}
	if v := c.String(); v != "" {
		h.Add("Set-Cookie", v)
	}

	rt.Metrics.SessionSaved()
	return nil
}

func removeCookie(h http.Header, name string) {
	prefix := name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		h.Del("Set-Cookie")
		return
	}
	h["Set-Cookie"] = kept
}

// finalizingWriter persists the session when the response starts.
type finalizingWriter struct {
	http.ResponseWriter
	state   *requestState
	started bool
}

func (w *finalizingWriter) finalize() {
	if w.started {
		return
	}
	w.started = true

	st := w.state
	if st.session == nil {
		return
	}
	if err := st.saveTo(w.ResponseWriter.Header()); err != nil {
		st.rt.Logger.Error().Err(err).Msg("session save failed")
	}
}

func (w *finalizingWriter) WriteHeader(code int) {
	w.finalize()
	w.ResponseWriter.WriteHeader(code)
}

func (w *finalizingWriter) Write(b []byte) (int, error) {
	w.finalize()
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (w *finalizingWriter) Flush() {
	w.finalize()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *finalizingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
