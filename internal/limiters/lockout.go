package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

// LockoutConfig holds configuration for the per-email login lockout.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutLimiter counts login attempts per normalized email. A successful
// login clears the count, so it only ever holds consecutive failures plus
// attempts in flight. Once threshold failures accumulate every further
// attempt is refused, correct password or not, until the window lapses.
type LockoutLimiter struct {
	window *rate.Window
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(window *rate.Window, cfg LockoutConfig) *LockoutLimiter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &LockoutLimiter{window: window, config: cfg}
}

// NormalizeEmail trims and lower-cases an email for keying and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *LockoutLimiter) key(email string) string {
	return "rl:login:email:" + email
}

// Reserve counts one login attempt before the password is checked, so
// parallel guesses cannot all read a count below the threshold. Attempts
// beyond the threshold are refused and re-arm the window, keeping a hammered
// account locked. reached reports that this attempt is the last one allowed;
// if it fails the account is locked from the next attempt on.
//
//	Performance: 1 Redis INCR, plus 1 EXPIRE on the first or a refused attempt.
func (l *LockoutLimiter) Reserve(ctx context.Context, email string) (locked, reached bool, err error) {
	key := l.key(email)
	count, err := l.window.Increment(ctx, key, l.config.Window)
	if err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	threshold := int64(l.config.Threshold)
	if count <= threshold {
		return false, count == threshold, nil
	}
	if err := l.window.Rearm(ctx, key, l.config.Window); err != nil {
		return true, true, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return true, true, nil
}

// Reset clears the failure counter after a successful login.
func (l *LockoutLimiter) Reset(ctx context.Context, email string) error {
	if err := l.window.Reset(ctx, l.key(email)); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure count.
func (l *LockoutLimiter) FailureCount(ctx context.Context, email string) (int, error) {
	count, err := l.window.Count(ctx, l.key(email))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
