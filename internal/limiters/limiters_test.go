package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestWindow(t *testing.T) (*miniredis.Miniredis, *rate.Window) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rate.NewWindow(rdb)
}

func TestLockoutLocksAfterThreshold(t *testing.T) {
	mr, w := newTestWindow(t)
	l := NewLockoutLimiter(w, LockoutConfig{Threshold: 5, Window: time.Hour})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		locked, reached, err := l.Reserve(ctx, "a@example.com")
		if err != nil || locked {
			t.Fatalf("attempt %d: unexpected locked=%v err=%v", i, locked, err)
		}
		if reached != (i == 5) {
			t.Fatalf("attempt %d: reached=%v", i, reached)
		}
	}

	locked, _, err := l.Reserve(ctx, "a@example.com")
	if err != nil || !locked {
		t.Fatalf("expected lock on the 6th attempt, got %v %v", locked, err)
	}
	if ttl := mr.TTL("rl:login:email:a@example.com"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(61 * time.Minute)
	locked, _, _ = l.Reserve(ctx, "a@example.com")
	if locked {
		t.Fatalf("lock must lapse after the window")
	}
}

func TestLockoutRefusedAttemptRearmsWindow(t *testing.T) {
	mr, w := newTestWindow(t)
	l := NewLockoutLimiter(w, LockoutConfig{Threshold: 2, Window: time.Hour})
	ctx := context.Background()

	_, _, _ = l.Reserve(ctx, "d@example.com")
	_, _, _ = l.Reserve(ctx, "d@example.com")
	mr.FastForward(50 * time.Minute)
	if locked, _, _ := l.Reserve(ctx, "d@example.com"); !locked {
		t.Fatalf("expected third attempt refused")
	}
	mr.FastForward(50 * time.Minute)
	if locked, _, _ := l.Reserve(ctx, "d@example.com"); !locked {
		t.Fatalf("a refused attempt must re-arm the window")
	}
}

func TestLockoutResetClearsCounter(t *testing.T) {
	_, w := newTestWindow(t)
	l := NewLockoutLimiter(w, LockoutConfig{})
	ctx := context.Background()

	_, _, _ = l.Reserve(ctx, "b@example.com")
	_, _, _ = l.Reserve(ctx, "b@example.com")
	if n, _ := l.FailureCount(ctx, "b@example.com"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if err := l.Reset(ctx, "b@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.FailureCount(ctx, "b@example.com"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLockoutFailsClosedWithoutRedis(t *testing.T) {
	mr, w := newTestWindow(t)
	l := NewLockoutLimiter(w, LockoutConfig{})
	mr.Close()

	if _, _, err := l.Reserve(context.Background(), "c@example.com"); !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
}

func TestPasswordResetThrottlePerEmailAndIP(t *testing.T) {
	_, w := newTestWindow(t)
	l := NewPasswordResetLimiter(w, PasswordResetConfig{
		EnableIdentifierThrottle: true,
		EnableIPThrottle:         true,
		Window:                   time.Hour,
		MaxAttempts:              2,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRequest(ctx, "d@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.CheckRequest(ctx, "d@example.com", "10.0.0.2"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("expected email throttle, got %v", err)
	}
	if err := l.CheckRequest(ctx, "e@example.com", "10.0.0.1"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("expected ip throttle, got %v", err)
	}

	var nilLimiter *PasswordResetLimiter
	if err := nilLimiter.CheckRequest(ctx, "x", "y"); err != nil {
		t.Fatalf("nil limiter must allow, got %v", err)
	}
}

func TestAccountCreationThrottle(t *testing.T) {
	_, w := newTestWindow(t)
	l := NewAccountCreationLimiter(w, AccountConfig{
		EnableIPThrottle: true,
		MaxAttempts:      1,
		Cooldown:         time.Minute,
	})
	ctx := context.Background()

	if err := l.Enforce(ctx, "f@example.com", "10.0.0.9"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := l.Enforce(ctx, "g@example.com", "10.0.0.9"); !errors.Is(err, ErrAccountRateLimited) {
		t.Fatalf("expected ip throttle, got %v", err)
	}
}
