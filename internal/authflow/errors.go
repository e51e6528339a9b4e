package authflow

import "errors"

// Errors returned by state stores. Both map to the same callback failure so
// a caller cannot distinguish whether a state ever existed.
var (
	// ErrStateNotFound indicates an unknown or already-consumed state
	ErrStateNotFound = errors.New("authorization state not found")

	// ErrStateExpired indicates the attempt outlived its window
	ErrStateExpired = errors.New("authorization state expired")
)
