package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

var (
	ErrAccountRateLimited      = errors.New("account rate limited")
	ErrAccountRedisUnavailable = errors.New("account redis unavailable")
)

type AccountConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// AccountCreationLimiter throttles registrations per email and per IP.
type AccountCreationLimiter struct {
	window *rate.Window
	config AccountConfig
}

func NewAccountCreationLimiter(window *rate.Window, cfg AccountConfig) *AccountCreationLimiter {
	return &AccountCreationLimiter{
		window: window,
		config: cfg,
	}
}

func (l *AccountCreationLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforceKey(ctx, "rl:register:email:"+email); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, "rl:register:ip:"+ip); err != nil {
			return err
		}
	}

	return nil
}

func (l *AccountCreationLimiter) enforceKey(ctx context.Context, key string) error {
	err := l.window.Hit(ctx, key, l.config.MaxAttempts, l.config.Cooldown)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrAccountRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
	}
}
