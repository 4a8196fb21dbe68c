package goIdentity

import "errors"

var (
	// ErrUnauthorized is the only authentication error callers should see.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for a wrong email or password. The
	// two cases are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the per-email lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrMalformedToken is an exported constant or variable used by the identity engine.
	ErrMalformedToken = errors.New("malformed refresh token")
	// ErrTokenNotFound is an exported constant or variable used by the identity engine.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenExpired is an exported constant or variable used by the identity engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for denylisted access tokens and for a
	// refresh token that lost a rotation race.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTheftDetected is returned after a refresh token reuse or secret
	// mismatch. Every active refresh token of the user has been revoked.
	ErrTheftDetected = errors.New("refresh token theft detected")
	// ErrLockConflict signals a concurrent refresh of the same token; retry.
	ErrLockConflict = errors.New("refresh already in progress")
	// ErrUserNotFound is an exported constant or variable used by the identity engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid is an exported constant or variable used by the identity engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrPermissionDenied is an exported constant or variable used by the identity engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrResetTokenInvalid is an exported constant or variable used by the identity engine.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrPasswordPolicy is an exported constant or variable used by the identity engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAccountExists is an exported constant or variable used by the identity engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrRateLimited is an exported constant or variable used by the identity engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidRole is an exported constant or variable used by the identity engine.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSessionCreationFailed is returned when a token pair could not be issued.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrCoordinatorUnavailable is returned when redis (lock, denylist,
	// lockout counter) cannot be reached. Requests fail closed.
	ErrCoordinatorUnavailable = errors.New("coordination backend unavailable")
	// ErrStoreUnavailable is an exported constant or variable used by the identity engine.
	ErrStoreUnavailable = errors.New("identity store unavailable")
	// ErrFeatureDisabled is returned by operations switched off in Config.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrEngineNotReady is an exported constant or variable used by the identity engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

var authFailures = []error{
	ErrInvalidCredentials,
	ErrAccountLocked,
	ErrMalformedToken,
	ErrTokenNotFound,
	ErrTokenExpired,
	ErrTokenRevoked,
	ErrTheftDetected,
	ErrUserNotFound,
	ErrTokenInvalid,
	ErrUnauthorized,
}

// PublicError collapses every authentication failure into ErrUnauthorized so
// callers cannot tell a locked account from a wrong password or an unknown
// email. ErrLockConflict passes through as a retry signal. Other errors are
// returned unchanged.
func PublicError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range authFailures {
		if errors.Is(err, target) {
			return ErrUnauthorized
		}
	}
	return err
}
