package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the coordination store cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrLockNotHeld is returned by ReleaseRefreshLock when the lock expired or
// belongs to another owner.
var ErrLockNotHeld = errors.New("refresh lock not held")

// DefaultLockTTL bounds how long a crashed holder can block a token row.
const DefaultLockTTL = 5 * time.Second

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockLua = redis.NewScript(releaseLockScript)

// Store is the Redis-backed coordination store: per-row refresh locks and
// the access token denylist.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a coordination [Store]. prefix namespaces every key; an
// empty prefix yields the bare "refresh_lock:" and "denylist:jti:" keys.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) withPrefix(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) lockKey(rowID string) string {
	return s.withPrefix("refresh_lock:" + rowID)
}

func (s *Store) denylistKey(jti string) string {
	return s.withPrefix("denylist:jti:" + jti)
}

// AcquireRefreshLock attempts SET NX PX on the row lock with owner as the
// value. It returns false without error when another holder owns the lock.
//
//	Performance: 1 Redis SET.
func (s *Store) AcquireRefreshLock(ctx context.Context, rowID, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	ok, err := s.redis.SetNX(ctx, s.lockKey(rowID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// ReleaseRefreshLock deletes the row lock only if owner still holds it.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) ReleaseRefreshLock(ctx context.Context, rowID, owner string) error {
	n, err := releaseLockLua.Run(ctx, s.redis, []string{s.lockKey(rowID)}, owner).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Denylist marks jti as revoked for ttl. Non-positive ttl is a no-op since
// the token has already expired.
func (s *Store) Denylist(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.denylistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ClaimJTI atomically denylists jti for ttl and reports whether this call
// was the first to do so. A false result means the jti was already spent.
//
//	Performance: 1 Redis SET.
func (s *Store) ClaimJTI(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := s.redis.SetNX(ctx, s.denylistKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// IsDenylisted reports whether jti was denylisted and has not yet expired.
func (s *Store) IsDenylisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.denylistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
