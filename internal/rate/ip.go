package rate

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// IPLimiter is a per-process token bucket per client IP. Idle buckets are
// evicted after ttl and the table never holds more than maxClients entries.
type IPLimiter struct {
	rps     rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]

	// mu serializes bucket creation so two first requests from one IP
	// share a bucket.
	mu sync.Mutex
}

// NewIPLimiter allows rps requests per second with the given burst per IP.
func NewIPLimiter(rps float64, burst, maxClients int, ttl time.Duration) *IPLimiter {
	if maxClients <= 0 {
		maxClients = 10000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	return &IPLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxClients, nil, ttl),
	}
}

// Allow consumes one token for ip.
func (l *IPLimiter) Allow(ip string) bool {
	return l.bucket(ip).Allow()
}

func (l *IPLimiter) bucket(ip string) *rate.Limiter {
	if lim, ok := l.buckets.Get(ip); ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.buckets.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.buckets.Add(ip, lim)
	return lim
}
