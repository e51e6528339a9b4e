// Package ratelimit implements fixed-window rate limiting for token
// endpoint calls. Windows are aligned to the wall clock and reset exactly at
// the boundary.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a limiter check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // Time until the next window opens; zero when allowed
}

// Limiter bounds operations per key per window
type Limiter interface {
	// TryAcquire consumes one slot for key, or reports when to retry
	TryAcquire(ctx context.Context, key string) (*Decision, error)

	// CheckHealth verifies the limiter's backing store is operational
	CheckHealth(ctx context.Context) error
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is a process-local fixed-window limiter
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string]*window
	now    func() time.Time
}

// NewMemoryLimiter creates a limiter allowing limit calls per window
func NewMemoryLimiter(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: windowSize,
		seen:   make(map[string]*window),
		now:    time.Now,
	}
}

// WithClock overrides the limiter's time source for tests
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// TryAcquire consumes one slot for key within the current window
func (l *MemoryLimiter) TryAcquire(ctx context.Context, key string) (*Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.window)

	w, ok := l.seen[key]
	if !ok || w.start.Before(start) {
		w = &window{start: start}
		l.seen[key] = w
	}

	if w.count >= l.limit {
		return &Decision{RetryAfter: start.Add(l.window).Sub(now)}, nil
	}

	w.count++
	return &Decision{Allowed: true}, nil
}

// CheckHealth always succeeds for the in-memory limiter
func (l *MemoryLimiter) CheckHealth(ctx context.Context) error {
	return nil
}

// Sweep drops windows that ended before the current one, bounding memory
// growth from one-off keys.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now().Truncate(l.window)
	removed := 0
	for key, w := range l.seen {
		if w.start.Before(start) {
			delete(l.seen, key)
			removed++
		}
	}
	return removed
}
