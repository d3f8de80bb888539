// Package securecookie provides the CookieCodec implementation used for
// session cookies. Values are JSON-serialized, HMAC-signed and optionally
// encrypted by gorilla/securecookie. Keys are derived from a single secret
// with HKDF so one configuration string serves both purposes.
package securecookie

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/artpar/waterspout/domain/session"
	"github.com/artpar/waterspout/ports"
	gorilla "github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

const (
	hashKeySize  = 64
	blockKeySize = 32

	// DefaultMaxAge bounds how long a signed value stays valid.
	DefaultMaxAge = 31 * 24 * time.Hour
)

// ErrEmptySecret is returned when no secret is configured.
var ErrEmptySecret = errors.New("securecookie: secret must not be empty")

// Options configures the codec.
type Options struct {
	// Encrypt additionally encrypts the value with AES-256.
	Encrypt bool
	// MaxAge of signed values. Zero uses DefaultMaxAge.
	MaxAge time.Duration
}

// Codec signs session mappings into cookie values.
type Codec struct {
	sc *gorilla.SecureCookie
}

// New creates a codec with keys derived from secret.
func New(secret string, opts Options) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	hashKey, err := deriveKey(secret, "waterspout cookie signing", hashKeySize)
	if err != nil {
		return nil, err
	}

	var blockKey []byte
	if opts.Encrypt {
		blockKey, err = deriveKey(secret, "waterspout cookie encryption", blockKeySize)
		if err != nil {
			return nil, err
		}
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	sc := gorilla.New(hashKey, blockKey)
	sc.SetSerializer(gorilla.JSONEncoder{})
	sc.MaxAge(int(maxAge / time.Second))

	return &Codec{sc: sc}, nil
}

// Encode serializes and signs v for the cookie called name.
func (c *Codec) Encode(name string, v session.Values) (string, error) {
	if v == nil {
		v = session.New()
	}
	out, err := c.sc.Encode(name, map[string]any(v))
	if err != nil {
		return "", fmt.Errorf("encode cookie %q: %w", name, err)
	}
	return out, nil
}

// Decode verifies and deserializes a cookie value. A value signed under a
// different secret, signed for another cookie name, or older than MaxAge
// is rejected.
func (c *Codec) Decode(name, value string) (session.Values, error) {
	var m map[string]any
	if err := c.sc.Decode(name, value, &m); err != nil {
		return nil, fmt.Errorf("decode cookie %q: %w", name, err)
	}
	if m == nil {
		return session.New(), nil
	}
	return session.Values(m), nil
}

// IsDecodeError reports whether err came from a value that failed
// verification or deserialization, as opposed to a usage error.
func IsDecodeError(err error) bool {
	var scErr gorilla.Error
	if errors.As(err, &scErr) {
		return scErr.IsDecode()
	}
	return false
}

func deriveKey(secret, info string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Ensure interface compliance.
var _ ports.CookieCodec = (*Codec)(nil)
