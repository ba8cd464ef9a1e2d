// ABOUTME: Redis-backed fixed-window rate limiter using go-redis v9
// ABOUTME: INCR + first-writer EXPIRE per window key

package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "greentic:ratelimit:tokens:"

// RedisLimiter counts token issues per scope in Redis so the limit holds
// across gateway replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter connects to the Redis at url and verifies connectivity.
// A non-positive window falls back to DefaultWindow.
func NewRedisLimiter(url string, limit int, window time.Duration) (*RedisLimiter, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisLimiter{client: client, limit: int64(limit), window: window}, nil
}

// Allow consumes one unit for key, or returns ErrLimited.
// The first increment of a window sets the key's expiry; the window is
// therefore anchored at the first request, not at wall-clock boundaries.
func (r *RedisLimiter) Allow(ctx context.Context, key string) error {
	redisKey := redisKeyPrefix + key

	n, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("redis: incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return fmt.Errorf("redis: expire: %w", err)
		}
	}
	if n > r.limit {
		return ErrLimited
	}
	return nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

var _ Limiter = (*RedisLimiter)(nil)
