package tokens

import (
	"context"
	"sync"

	"github.com/snapsell/ebay-auth/internal/oauth"
)

// MemoryStore is an in-memory Store for single-instance deployments
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*oauth.Token
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*oauth.Token)}
}

// Get retrieves the token record for key
func (s *MemoryStore) Get(ctx context.Context, key string) (*oauth.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[key]
	if !ok {
		return nil, ErrNoToken
	}
	copied := *token
	return &copied, nil
}

// Put replaces the token record for key
func (s *MemoryStore) Put(ctx context.Context, key string, token *oauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *token
	s.tokens[key] = &copied
	return nil
}

// Clear removes the token record for key
func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	return nil
}

// CheckHealth always succeeds for the in-memory store
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
