package authflow

import "context"

// StateStore holds in-flight authorization attempts keyed by state token
type StateStore interface {
	// Put stores an attempt until its expiry
	Put(ctx context.Context, attempt *Attempt) error

	// Take retrieves and deletes the attempt for state. The removal is
	// atomic: two concurrent calls with the same state yield exactly one
	// attempt and one ErrStateNotFound. Expired attempts are never
	// returned, swept or not.
	Take(ctx context.Context, state string) (*Attempt, error)

	// SweepExpired removes attempts past their expiry, returning the count
	SweepExpired(ctx context.Context) (int, error)

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
