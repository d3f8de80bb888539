// Package random provides Random implementations and the fallback secret
// used when a container is built without a cookie secret.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/artpar/waterspout/ports"
)

// SecretSize is the number of random bytes in a generated secret.
const SecretSize = 32

// Real uses crypto/rand.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// String generates a random hex string of n characters.
func (r Real) String(n int) (string, error) {
	return hexString(r, n)
}

// Secret returns a hex-encoded secret of SecretSize random bytes.
// Sessions signed with it do not survive a restart.
func Secret(r ports.Random) (string, error) {
	return hexString(r, SecretSize*2)
}

// Fake returns deterministic bytes for tests. Each call advances a counter
// so consecutive calls differ.
type Fake struct {
	mu      sync.Mutex
	counter int
}

// NewFake creates a fake random source.
func NewFake() *Fake {
	return &Fake{}
}

// Bytes returns n deterministic bytes.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counter++
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((f.counter + i) % 256)
	}
	return b, nil
}

// String returns a deterministic hex string.
func (f *Fake) String(n int) (string, error) {
	return hexString(f, n)
}

func hexString(r ports.Random, n int) (string, error) {
	b, err := r.Bytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	s := hex.EncodeToString(b)
	return s[:n], nil
}

// Ensure interface compliance.
var (
	_ ports.Random = Real{}
	_ ports.Random = (*Fake)(nil)
)
