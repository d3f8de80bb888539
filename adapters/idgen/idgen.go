// Package idgen provides identity generators for containers.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/waterspout/ports"
	"github.com/google/uuid"
)

// UUID generates random (v4) UUIDs.
type UUID struct{}

// New generates a new UUID string.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates prefix1, prefix2, ... (for tests).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
