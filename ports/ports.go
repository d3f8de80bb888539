// Package ports defines interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"io"

	"github.com/artpar/waterspout/domain/session"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// String generates a random string of n characters.
	String(n int) (string, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Session Ports
// -----------------------------------------------------------------------------

// CookieCodec signs (and optionally encrypts) session mappings into cookie
// values. Decode must reject values that were tampered with or have expired.
type CookieCodec interface {
	Encode(name string, v session.Values) (string, error)
	Decode(name, value string) (session.Values, error)
}

// -----------------------------------------------------------------------------
// Template Ports
// -----------------------------------------------------------------------------

// Renderer renders named templates.
type Renderer interface {
	// Render writes the named template to w.
	// vars are the caller's template variables. bound replaces the
	// request-scoped helper functions for this call only.
	Render(w io.Writer, name string, vars map[string]any, bound map[string]any) error
}
