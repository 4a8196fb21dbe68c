package permission

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a resolved set stays cached.
const DefaultCacheTTL = 15 * time.Minute

// Source loads the roles currently assigned to a user.
type Source interface {
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}

// Cache stores resolved sets. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (Set, bool, error)
	Set(ctx context.Context, key string, value Set, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheEvent classifies a cache interaction for metrics.
type CacheEvent uint8

const (
	CacheHit CacheEvent = iota
	CacheMiss
	CacheError
)

// CacheKey returns the cache key for userID.
func CacheKey(userID string) string {
	return "permissions:" + userID
}

// Resolver flattens a user's roles into a [Set], consulting an optional [Cache].
type Resolver struct {
	source   Source
	cache    Cache
	ttl      time.Duration
	logger   *zap.Logger
	observer func(CacheEvent)
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithCache enables caching. A nil cache disables it.
func WithCache(c Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for degraded cache operations.
func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers a callback invoked for every cache interaction.
func WithObserver(fn func(CacheEvent)) ResolverOption {
	return func(r *Resolver) {
		r.observer = fn
	}
}

// NewResolver builds a resolver over source.
func NewResolver(source Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source: source,
		ttl:    DefaultCacheTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) observe(e CacheEvent) {
	if r.observer != nil {
		r.observer(e)
	}
}

// PermissionsForUser returns the flattened permission set of userID.
// Cache read and write failures are logged and otherwise ignored; only a
// failure of the underlying [Source] is returned.
func (r *Resolver) PermissionsForUser(ctx context.Context, userID string) (Set, error) {
	key := CacheKey(userID)

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.observe(CacheError)
			r.logger.Warn("permission cache read failed", zap.String("user_id", userID), zap.Error(err))
		case ok:
			r.observe(CacheHit)
			return cached, nil
		default:
			r.observe(CacheMiss)
		}
	}

	roles, err := r.source.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := Flatten(roles)

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, set, r.ttl); err != nil {
			r.observe(CacheError)
			r.logger.Warn("permission cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return set, nil
}

// ClearCacheForUser drops the cached set for userID. Errors are logged.
func (r *Resolver) ClearCacheForUser(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, CacheKey(userID)); err != nil {
		r.observe(CacheError)
		r.logger.Warn("permission cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
