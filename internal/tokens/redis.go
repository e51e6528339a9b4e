// Package tokens implements token storage with Redis
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snapsell/ebay-auth/internal/oauth"
)

const tokenPrefix = "token:"

// refreshGrace keeps a record around past access token expiry so the refresh
// token inside it can still be used. eBay refresh tokens live for months;
// this bounds abandoned sessions rather than tracking the real lifetime.
const refreshGrace = 30 * 24 * time.Hour

// RedisStore implements Store using Redis, for multi-instance deployments
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed token store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves the token record for key
func (s *RedisStore) Get(ctx context.Context, key string) (*oauth.Token, error) {
	data, err := s.client.Get(ctx, tokenPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("getting token record: %w", err)
	}

	var token oauth.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unmarshaling token record: %w", err)
	}
	return &token, nil
}

// Put replaces the token record for key
func (s *RedisStore) Put(ctx context.Context, key string, token *oauth.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshaling token record: %w", err)
	}

	ttl := time.Until(token.ExpiresAt) + refreshGrace
	if err := s.client.Set(ctx, tokenPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving token record: %w", err)
	}
	return nil
}

// Clear removes the token record for key
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, tokenPrefix+key).Err(); err != nil {
		return fmt.Errorf("clearing token record: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("token store health check failed: %w", err)
	}
	return nil
}
