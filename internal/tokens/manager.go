package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/snapsell/ebay-auth/internal/oauth"
)

// DefaultRefreshMargin is how close to expiry a token may get before
// GetValid refreshes it
const DefaultRefreshMargin = 60 * time.Second

// Manager serves valid tokens, refreshing near-expiry records through the
// provider. Concurrent refreshes for the same key are coalesced so the
// provider sees at most one in-flight refresh per key.
type Manager struct {
	store    Store
	provider oauth.Provider
	margin   time.Duration
	group    singleflight.Group
	now      func() time.Time
	logger   *slog.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRefreshMargin sets the expiry safety margin
func WithRefreshMargin(d time.Duration) ManagerOption {
	return func(m *Manager) { m.margin = d }
}

// WithClock overrides the manager's time source for tests
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a token manager over the given store and provider
func NewManager(store Store, provider oauth.Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		provider: provider,
		margin:   DefaultRefreshMargin,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Put replaces the token record for key
func (m *Manager) Put(ctx context.Context, key string, token *oauth.Token) error {
	return m.store.Put(ctx, key, token)
}

// Clear removes the token record for key
func (m *Manager) Clear(ctx context.Context, key string) error {
	return m.store.Clear(ctx, key)
}

// CheckHealth verifies the backing store is healthy
func (m *Manager) CheckHealth(ctx context.Context) error {
	return m.store.CheckHealth(ctx)
}

// GetValid returns a token guaranteed to be outside the expiry safety
// margin, refreshing if needed. When no usable credential can be produced it
// returns ErrAuthRequired and the caller must re-run the authorization flow.
func (m *Manager) GetValid(ctx context.Context, key string) (*oauth.Token, error) {
	token, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, ErrAuthRequired
		}
		return nil, fmt.Errorf("getting token record: %w", err)
	}

	if m.fresh(token) {
		return token, nil
	}

	result, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.refresh(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*oauth.Token), nil
}

// refresh runs inside a singleflight and re-checks the store first: a caller
// that lost the race to an already-completed flight must not trigger a
// second provider call.
func (m *Manager) refresh(ctx context.Context, key string) (*oauth.Token, error) {
	token, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, ErrAuthRequired
		}
		return nil, fmt.Errorf("getting token record: %w", err)
	}
	if m.fresh(token) {
		return token, nil
	}

	if token.RefreshToken == "" {
		m.clearStale(ctx, key)
		return nil, fmt.Errorf("%w: token expired and no refresh token held", ErrAuthRequired)
	}

	refreshed, err := m.provider.Refresh(ctx, key, token.RefreshToken)
	if err != nil {
		// A rate-limited refresh is transient: keep the record and let the
		// caller back off for RetryAfter
		var rateErr *oauth.RateLimitedError
		if errors.As(err, &rateErr) {
			return nil, err
		}
		m.logger.Warn("token refresh failed", "key", key, "error", err)
		m.clearStale(ctx, key)
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrAuthRequired, err)
	}

	// eBay does not rotate refresh tokens on refresh; carry the old one
	// forward when the response omits it
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	if err := m.store.Put(ctx, key, refreshed); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	return refreshed, nil
}

func (m *Manager) fresh(token *oauth.Token) bool {
	return m.now().Add(m.margin).Before(token.ExpiresAt)
}

func (m *Manager) clearStale(ctx context.Context, key string) {
	if err := m.store.Clear(ctx, key); err != nil {
		m.logger.Warn("clearing stale token failed", "key", key, "error", err)
	}
}
