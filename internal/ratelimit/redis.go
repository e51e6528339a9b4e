// Package ratelimit implements limiter storage with Redis
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ratePrefix = "rate:"

// RedisLimiter is a fixed-window limiter shared across instances. Each
// window is a counter keyed by its wall-clock start, expired by Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client *redis.Client, limit int, windowSize time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: windowSize,
		now:    time.Now,
	}
}

// TryAcquire consumes one slot for key within the current window
func (l *RedisLimiter) TryAcquire(ctx context.Context, key string) (*Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	windowKey := fmt.Sprintf("%s%s:%d", ratePrefix, key, start.Unix())

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	// Expire a window past the boundary so a straggling check still sees it
	pipe.Expire(ctx, windowKey, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("incrementing rate counter: %w", err)
	}

	if incr.Val() > int64(l.limit) {
		return &Decision{RetryAfter: start.Add(l.window).Sub(now)}, nil
	}

	return &Decision{Allowed: true}, nil
}

// CheckHealth verifies Redis connectivity
func (l *RedisLimiter) CheckHealth(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rate limiter health check failed: %w", err)
	}
	return nil
}
