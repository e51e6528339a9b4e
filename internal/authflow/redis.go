// Package authflow implements attempt storage with Redis
package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptPrefix = "attempt:"

// RedisStateStore holds attempts in Redis, for multi-instance deployments.
// Redis TTLs bound attempt lifetime; GETDEL makes consumption atomic across
// instances.
type RedisStateStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client, now: time.Now}
}

// Put stores an attempt with a TTL matching its expiry
func (s *RedisStateStore) Put(ctx context.Context, attempt *Attempt) error {
	ttl := attempt.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("attempt has already expired")
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshaling attempt: %w", err)
	}

	if err := s.client.Set(ctx, attemptPrefix+attempt.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving attempt: %w", err)
	}
	return nil
}

// Take retrieves and deletes the attempt for state
func (s *RedisStateStore) Take(ctx context.Context, state string) (*Attempt, error) {
	data, err := s.client.GetDel(ctx, attemptPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("taking attempt: %w", err)
	}

	var attempt Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, fmt.Errorf("unmarshaling attempt: %w", err)
	}

	// TTL should have removed it already; guard against clock skew between
	// this process and Redis
	if !s.now().Before(attempt.ExpiresAt) {
		return nil, ErrStateExpired
	}

	return &attempt, nil
}

// SweepExpired is a no-op: Redis TTLs expire attempts server-side
func (s *RedisStateStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStateStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("state store health check failed: %w", err)
	}
	return nil
}
