package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/artpar/waterspout/domain/session"
)

// Render renders the named template as an HTML response. The template is
// rendered in full before anything is written, so a failed render leaves
// the response untouched.
func Render(w http.ResponseWriter, r *http.Request, name string, vars map[string]any) error {
	var buf bytes.Buffer
	if err := renderTo(&buf, r, name, vars); err != nil {
		return err
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderString renders the named template and returns the text.
func RenderString(r *http.Request, name string, vars map[string]any) (string, error) {
	var b strings.Builder
	if err := renderTo(&b, r, name, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderTo(w io.Writer, r *http.Request, name string, vars map[string]any) error {
	st := stateFrom(r.Context())
	if st == nil {
		return ErrNoRuntime
	}
	if st.rt.Renderer == nil {
		return ErrNoRenderer
	}
	return st.rt.Renderer.Render(w, name, vars, templateFuncs(st, r))
}

// templateFuncs binds the request-scoped helpers available to templates.
func templateFuncs(st *requestState, r *http.Request) map[string]any {
	rt := st.rt
	return map[string]any{
		"request":      func() *http.Request { return r },
		"current_user": func() any { return CurrentUser(r) },
		"session":      func() session.Values { return SessionFrom(r).values },
		"get_flashed_messages": func(categories ...string) []string {
			return Flashed(r, categories...)
		},
		"reverse_url": func(name string, params ...string) (string, error) {
			if rt.ReverseURL == nil {
				return "", fmt.Errorf("reverse_url: no route table for %q", name)
			}
			return rt.ReverseURL(name, params...)
		},
		"static_url": func(path string) string {
			return StaticURL(rt.StaticURLPrefix, path)
		},
	}
}

// StaticURL joins a static URL prefix and a file path.
func StaticURL(prefix, path string) string {
	if prefix == "" {
		prefix = "/static/"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
