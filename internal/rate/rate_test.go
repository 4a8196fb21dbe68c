package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestWindowFixedExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	w := NewWindow(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Hit(ctx, "k", 3, time.Minute); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		mr.FastForward(10 * time.Second)
	}
	if err := w.Hit(ctx, "k", 3, time.Minute); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Later hits must not extend the window.
	mr.FastForward(31 * time.Second)
	if n, _ := w.Count(ctx, "k"); n != 0 {
		t.Fatalf("expected window to expire, count=%d", n)
	}

	mr.Close()
	if err := w.Hit(ctx, "k", 3, time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestIPLimiterBurst(t *testing.T) {
	l := NewIPLimiter(0.001, 2, 10, time.Minute)
	if !l.Allow("1.1.1.1") || !l.Allow("1.1.1.1") {
		t.Fatalf("burst of 2 must pass")
	}
	if l.Allow("1.1.1.1") {
		t.Fatalf("third request must be limited")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatalf("buckets are per ip")
	}
}

func TestIPLimiterConcurrentFirstRequestsShareBucket(t *testing.T) {
	for round := 0; round < 20; round++ {
		l := NewIPLimiter(0.001, 3, 10, time.Minute)
		var allowed atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if l.Allow("3.3.3.3") {
					allowed.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		if allowed.Load() != 3 {
			t.Fatalf("round %d: expected burst of 3 across racers, got %d", round, allowed.Load())
		}
	}
}
