package permission

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores sets as JSON arrays of wire-form strings.
type RedisCache struct {
	redis redis.UniversalClient
}

// NewRedisCache returns a [Cache] backed by rdb.
func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{redis: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Set, bool, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var wire []string
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false, err
	}
	return FromStrings(wire), true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value Set, ttl time.Duration) error {
	raw, err := json.Marshal(value.Strings())
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, raw, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, key).Err()
}
