package app

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNotRegistered = errors.New("app: module is not registered with a container")
	ErrContainerGone = errors.New("app: the module's container no longer exists")
	ErrUnknownRoute  = errors.New("app: no route with that name")
)

// DuplicateIdentityLoaderError is returned when a second identity loader
// would be merged into a container that already has one.
type DuplicateIdentityLoaderError struct {
	Existing string // contributor of the active loader
	Incoming string // contributor of the rejected loader
}

func (e *DuplicateIdentityLoaderError) Error() string {
	return fmt.Sprintf("app: identity loader already set by %s, refusing loader from %s", e.Existing, e.Incoming)
}

// RoutePatternError is returned by Build for a route the router rejects.
type RoutePatternError struct {
	Pattern string
	Reason  string
}

func (e *RoutePatternError) Error() string {
	return fmt.Sprintf("app: invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// FilterNameError is returned by Build for a filter that cannot be
// exposed to templates.
type FilterNameError struct {
	Name   string
	Reason string
}

func (e *FilterNameError) Error() string {
	return fmt.Sprintf("app: invalid template filter %q: %s", e.Name, e.Reason)
}
