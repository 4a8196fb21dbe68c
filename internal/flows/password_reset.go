package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

// ForgotFailureKind classifies forgot-password outcomes. Every kind maps to
// the same public response.
type ForgotFailureKind int

const (
	ForgotFailureNone ForgotFailureKind = iota
	ForgotFailureRateLimited
	ForgotFailureThrottleUnavailable
	ForgotFailureUnknownUser
	ForgotFailureStore
	ForgotFailureIssue
	ForgotFailureDelivery
)

type ForgotPasswordResult struct {
	Failure ForgotFailureKind
	Err     error
	Email   string
	UserID  string
	JTI     string
}

// ForgotPasswordDeps captures reset-request dependencies.
type ForgotPasswordDeps struct {
	NormalizeEmail func(string) string
	Throttle       func(ctx context.Context, email, ip string) error
	RateLimited    error
	Users          store.UserStore
	CreateReset    func(sub string) (string, *jwt.ResetClaims, error)
	Deliver        func(ctx context.Context, email, token string, expiresAt time.Time) error
}

// RunForgotPassword issues a reset token for a known email and hands it to
// the mailer. Unknown emails do no further work.
func RunForgotPassword(ctx context.Context, email, ip string, deps ForgotPasswordDeps) ForgotPasswordResult {
	email = deps.NormalizeEmail(email)
	res := ForgotPasswordResult{Email: email}

	if deps.Throttle != nil {
		if err := deps.Throttle(ctx, email, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				res.Failure, res.Err = ForgotFailureRateLimited, err
				return res
			}
			res.Failure, res.Err = ForgotFailureThrottleUnavailable, err
			return res
		}
	}

	user, err := deps.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Failure = ForgotFailureUnknownUser
			return res
		}
		res.Failure, res.Err = ForgotFailureStore, err
		return res
	}
	res.UserID = user.ID

	token, claims, err := deps.CreateReset(user.ID)
	if err != nil {
		res.Failure, res.Err = ForgotFailureIssue, err
		return res
	}
	res.JTI = claims.ID

	if err := deps.Deliver(ctx, user.Email, token, claims.ExpiresAt.Time); err != nil {
		res.Failure, res.Err = ForgotFailureDelivery, err
		return res
	}
	return res
}

// ResetFailureKind classifies reset-confirmation failures.
type ResetFailureKind int

const (
	ResetFailureNone ResetFailureKind = iota
	ResetFailureInvalidToken
	ResetFailureReplayed
	ResetFailureDenylistUnavailable
	ResetFailurePolicy
	ResetFailureUserNotFound
	ResetFailureStore
	ResetFailureHash
)

type PasswordResetResult struct {
	Failure         ResetFailureKind
	Err             error
	UserID          string
	JTI             string
	SessionsRevoked int64
}

// PasswordResetDeps captures reset-confirmation dependencies.
type PasswordResetDeps struct {
	Now            func() time.Time
	RevokeSessions bool

	ParseReset       func(string) (*jwt.ResetClaims, error)
	IsDenylisted     func(ctx context.Context, jti string) (bool, error)
	ClaimJTI         func(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	ValidatePassword func(string) error
	HashPassword     func(string) (string, error)

	Users  store.UserStore
	Tokens store.RefreshTokenStore

	Logger *zap.Logger
}

// RunPasswordReset consumes a reset token and replaces the password hash.
// The token's jti is claimed with one atomic SET NX before hashing, so of
// any number of concurrent presentations exactly one reaches the write. A
// failed claim leaves the account unchanged.
func RunPasswordReset(ctx context.Context, tokenStr, newPassword string, deps PasswordResetDeps) PasswordResetResult {
	logger := orNop(deps.Logger)
	var res PasswordResetResult

	claims, err := deps.ParseReset(tokenStr)
	if err != nil {
		res.Failure, res.Err = ResetFailureInvalidToken, err
		return res
	}
	res.UserID, res.JTI = claims.Subject, claims.ID

	used, err := deps.IsDenylisted(ctx, claims.ID)
	if err != nil {
		res.Failure, res.Err = ResetFailureDenylistUnavailable, err
		return res
	}
	if used {
		res.Failure = ResetFailureReplayed
		return res
	}

	if err := deps.ValidatePassword(newPassword); err != nil {
		res.Failure, res.Err = ResetFailurePolicy, err
		return res
	}

	if _, err := deps.Users.GetUserByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Failure, res.Err = ResetFailureUserNotFound, err
			return res
		}
		res.Failure, res.Err = ResetFailureStore, err
		return res
	}

	now := deps.Now()
	claimed, err := deps.ClaimJTI(ctx, claims.ID, claims.ExpiresAt.Time.Sub(now))
	if err != nil {
		res.Failure, res.Err = ResetFailureDenylistUnavailable, err
		return res
	}
	if !claimed {
		res.Failure = ResetFailureReplayed
		return res
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		res.Failure, res.Err = ResetFailureHash, err
		return res
	}

	if _, err := deps.Users.UpdateUser(ctx, claims.Subject, store.UserUpdate{PasswordHash: &hash}, now); err != nil {
		res.Failure, res.Err = ResetFailureStore, err
		return res
	}

	if deps.RevokeSessions {
		n, err := deps.Tokens.RevokeAllForUser(ctx, claims.Subject, now)
		if err != nil {
			logger.Error("goIdentity: session revocation after reset failed", zap.String("user_id", claims.Subject), zap.Error(err))
		}
		res.SessionsRevoked = n
	}
	return res
}
