package authflow

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore holds attempts in process memory, for single-instance
// deployments and tests
type MemoryStateStore struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
	now      func() time.Time
}

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		attempts: make(map[string]*Attempt),
		now:      time.Now,
	}
}

// WithClock overrides the store's time source for tests
func (s *MemoryStateStore) WithClock(now func() time.Time) *MemoryStateStore {
	s.now = now
	return s
}

// Put stores an attempt until its expiry
func (s *MemoryStateStore) Put(ctx context.Context, attempt *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *attempt
	s.attempts[attempt.State] = &copied
	return nil
}

// Take retrieves and deletes the attempt for state. Expiry is checked here
// rather than relying on sweeps, so a stale attempt is refused even if the
// sweeper never ran.
func (s *MemoryStateStore) Take(ctx context.Context, state string) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[state]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.attempts, state)

	if !s.now().Before(attempt.ExpiresAt) {
		return nil, ErrStateExpired
	}

	copied := *attempt
	return &copied, nil
}

// SweepExpired removes attempts past their expiry
func (s *MemoryStateStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, attempt := range s.attempts {
		if !now.Before(attempt.ExpiresAt) {
			delete(s.attempts, state)
			removed++
		}
	}
	return removed, nil
}

// CheckHealth always succeeds for the in-memory store
func (s *MemoryStateStore) CheckHealth(ctx context.Context) error {
	return nil
}

// Len reports the number of live attempts, for monitoring
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}
