package ratelimit

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter on Redis (INCR + EXPIRE). It
// trades the sliding lookback of the bucket limiter for a single shared
// counter per window, which multi-node deployments can share without a
// relational store round trip.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client *rdb.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Check increments the window counter and undoes the increment when the
// limit was already reached, so a denied request is never counted.
func (l *RedisLimiter) Check(ctx context.Context, identifier, action string, max int, window time.Duration) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(window)
	key := fmt.Sprintf("%s%s:%s:%d", l.prefix, identifier, action, winStart.Unix())

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit expire failed: %w", err)
		}
	}

	resetAt := winStart.Add(window)
	if count > int64(max) {
		if err := l.client.Decr(ctx, key).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit decr failed: %w", err)
		}
		return Result{
			Allowed:      false,
			CurrentCount: int64(max),
			ResetAt:      resetAt,
		}, nil
	}

	return Result{
		Allowed:      true,
		CurrentCount: count,
		ResetAt:      resetAt,
	}, nil
}
