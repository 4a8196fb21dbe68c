package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a Redis fixed-window counter shared by every process.
type Window struct {
	redis redis.UniversalClient
}

// NewWindow creates a fixed-window counter backed by the given Redis client.
func NewWindow(redisClient redis.UniversalClient) *Window {
	return &Window{redis: redisClient}
}

// Hit increments key and returns ErrRateLimited once the count exceeds
// maxHits within ttl.
func (w *Window) Hit(ctx context.Context, key string, maxHits int, ttl time.Duration) error {
	count, err := w.Increment(ctx, key, ttl)
	if err != nil {
		return err
	}
	if count > int64(maxHits) {
		return ErrRateLimited
	}
	return nil
}

// Increment adds one hit and returns the running count.
func (w *Window) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 && ttl > 0 {
		if err := w.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Count returns the current count for key. Missing keys count as zero.
func (w *Window) Count(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Rearm resets the TTL of an existing key.
func (w *Window) Rearm(ctx context.Context, key string, ttl time.Duration) error {
	if err := w.redis.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Reset deletes the counters.
func (w *Window) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
