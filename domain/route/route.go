// Package route provides the route entry value type and pure functions over
// route tables: prefix rewriting and reverse URL building.
// Pattern syntax is not validated here; the router rejects malformed patterns
// when a server instance is built.
package route

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// Route is one URL pattern bound to a handler (immutable value type).
type Route struct {
	Pattern string
	Handler http.Handler
	Args    map[string]any // Optional per-route arguments exposed to the handler
	Name    string         // Optional name for reverse routing
}

// New creates a route entry.
func New(pattern string, handler http.Handler) Route {
	return Route{Pattern: pattern, Handler: handler}
}

// WithPrefix returns a copy of the route with prefix prepended to its pattern.
// All other fields are preserved.
func (r Route) WithPrefix(prefix string) Route {
	out := r
	out.Pattern = prefix + r.Pattern
	if r.Args != nil {
		out.Args = maps.Clone(r.Args)
	}
	return out
}

// Prefix rewrites a route table for mounting under prefix.
// A prefix of exactly "/" leaves every pattern untouched.
func Prefix(routes []Route, prefix string) []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if prefix == "/" {
			out = append(out, r)
			continue
		}
		out = append(out, r.WithPrefix(prefix))
	}
	return out
}

// DefaultPrefix returns the mount prefix used when none is given.
func DefaultPrefix(moduleName string) string {
	return "/" + moduleName
}

// Params returns the names of the {placeholders} in a pattern, in order.
// Regexp constraints ({id:[0-9]+}) are stripped.
func Params(pattern string) []string {
	var names []string
	for _, seg := range placeholders(pattern) {
		name := seg
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		names = append(names, name)
	}
	return names
}

// URL builds a concrete path from the route pattern by substituting
// placeholders positionally. A trailing "*" wildcard is dropped.
func (r Route) URL(params ...string) (string, error) {
	want := placeholders(r.Pattern)
	if len(want) != len(params) {
		return "", fmt.Errorf("route %q expects %d params, got %d", r.Pattern, len(want), len(params))
	}

	var b strings.Builder
	rest := r.Pattern
	for _, p := range params {
		open := strings.IndexByte(rest, '{')
		closeIdx := matchingBrace(rest, open)
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(p))
		rest = rest[closeIdx+1:]
	}
	b.WriteString(strings.TrimSuffix(rest, "*"))
	return b.String(), nil
}

// Find returns the first route with the given name.
func Find(routes []Route, name string) (Route, bool) {
	for _, r := range routes {
		if r.Name != "" && r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// placeholders returns the raw contents of each {...} group in pattern.
func placeholders(pattern string) []string {
	var out []string
	rest := pattern
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return out
		}
		closeIdx := matchingBrace(rest, open)
		if closeIdx < 0 {
			return out
		}
		out = append(out, rest[open+1:closeIdx])
		rest = rest[closeIdx+1:]
	}
}

// matchingBrace finds the '}' closing the '{' at open, honouring nested
// braces inside regexp constraints such as {id:[0-9]{3}}.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
