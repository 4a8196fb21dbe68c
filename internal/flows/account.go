package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/store"
	"github.com/google/uuid"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureRateLimited
	RegisterFailureThrottleUnavailable
	RegisterFailurePolicy
	RegisterFailureExists
	RegisterFailureUnknownRole
	RegisterFailureHash
	RegisterFailureStore
)

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    *store.User
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	DefaultRole string
	Now         func() time.Time

	NormalizeEmail   func(string) string
	Throttle         func(ctx context.Context, email, ip string) error
	RateLimited      error
	ValidatePassword func(string) error
	HashPassword     func(string) (string, error)
	Users            store.UserStore
}

// RunRegister creates a user with the default role.
func RunRegister(ctx context.Context, req RegisterRequest, ip string, deps RegisterDeps) RegisterResult {
	email := deps.NormalizeEmail(req.Email)

	if deps.Throttle != nil {
		if err := deps.Throttle(ctx, email, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return RegisterResult{Failure: RegisterFailureRateLimited, Err: err}
			}
			return RegisterResult{Failure: RegisterFailureThrottleUnavailable, Err: err}
		}
	}

	if err := deps.ValidatePassword(req.Password); err != nil {
		return RegisterResult{Failure: RegisterFailurePolicy, Err: err}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	now := deps.Now()
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := deps.Users.CreateUser(ctx, user, []string{deps.DefaultRole}); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return RegisterResult{Failure: RegisterFailureExists, Err: err}
		case errors.Is(err, store.ErrUnknownRole):
			return RegisterResult{Failure: RegisterFailureUnknownRole, Err: err}
		default:
			return RegisterResult{Failure: RegisterFailureStore, Err: err}
		}
	}

	created, err := deps.Users.GetUserByID(ctx, user.ID)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}
	return RegisterResult{User: created}
}
