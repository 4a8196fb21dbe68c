package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

// PasswordResetLimiter throttles forgot-password requests per email and per IP.
type PasswordResetLimiter struct {
	window *rate.Window
	config PasswordResetConfig
}

func NewPasswordResetLimiter(window *rate.Window, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		window: window,
		config: cfg,
	}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, "rl:forgot:email:"+email); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, "rl:forgot:ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforce(ctx context.Context, key string) error {
	err := l.window.Hit(ctx, key, l.config.MaxAttempts, l.config.Window)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrResetRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
}
