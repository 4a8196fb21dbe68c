package permission

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a per-process [Cache]. Entries share the TTL given at
// construction; the ttl argument of Set is ignored.
type LRUCache struct {
	lru *expirable.LRU[string, Set]
}

// NewLRUCache returns a cache holding at most size sets for ttl each.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LRUCache{lru: expirable.NewLRU[string, Set](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key string) (Set, bool, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append(Set(nil), v...), true, nil
}

func (c *LRUCache) Set(_ context.Context, key string, value Set, _ time.Duration) error {
	c.lru.Add(key, append(Set(nil), value...))
	return nil
}

func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}
