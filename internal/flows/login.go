package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureLockoutUnavailable
	LoginFailureLocked
	LoginFailureInvalidCredentials
	LoginFailureStore
	LoginFailureIssue
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Email   string
	User    *store.User

	AccessToken  string
	RefreshToken string
	RefreshRowID string

	// LockedNow is set when this failure is the one that reached the threshold.
	LockedNow bool
	Rehashed  bool
}

// LoginLockout is the per-email attempt counter. Reserve is called before
// any password verification and Reset after a successful one.
type LoginLockout interface {
	Reserve(ctx context.Context, email string) (locked, reached bool, err error)
	Reset(ctx context.Context, email string) error
}

// PasswordHasher is the subset of password.Argon2 the flows need.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	VerifyDummy(password string)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool
	Now            func() time.Time

	NormalizeEmail func(string) string
	Lockout        LoginLockout
	Users          store.UserStore
	Hasher         PasswordHasher
	Issue          IssueDeps

	// IssueAccess signs an access token for userID with freshly resolved
	// permissions.
	IssueAccess func(ctx context.Context, userID string) (string, error)

	Logger *zap.Logger
}

// RunLogin verifies credentials under the lockout policy and issues a token pair.
func RunLogin(ctx context.Context, email, password, device string, deps LoginDeps) LoginResult {
	logger := orNop(deps.Logger)
	email = deps.NormalizeEmail(email)
	res := LoginResult{Email: email}

	locked, reached, err := deps.Lockout.Reserve(ctx, email)
	if err != nil {
		res.Failure, res.Err = LoginFailureLockoutUnavailable, err
		return res
	}
	if locked {
		res.Failure = LoginFailureLocked
		return res
	}

	user, err := deps.Users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		res.Failure, res.Err = LoginFailureStore, err
		return res
	}

	ok := false
	if user == nil || user.PasswordHash == "" {
		// Unknown or passwordless accounts still pay for one verification.
		deps.Hasher.VerifyDummy(password)
	} else {
		ok, err = deps.Hasher.Verify(password, user.PasswordHash)
		if err != nil {
			logger.Warn("goIdentity: stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
			ok = false
		}
	}

	if !ok {
		res.Failure = LoginFailureInvalidCredentials
		res.LockedNow = reached
		if user != nil {
			res.User = user
		}
		return res
	}
	res.User = user

	if err := deps.Lockout.Reset(ctx, email); err != nil {
		logger.Warn("goIdentity: lockout counter reset failed", zap.String("email", email), zap.Error(err))
	}

	if deps.UpgradeOnLogin {
		res.Rehashed = rehashIfNeeded(ctx, user, password, deps, logger)
	}

	access, err := deps.IssueAccess(ctx, user.ID)
	if err != nil {
		res.Failure, res.Err = LoginFailureIssue, err
		return res
	}
	row, refresh, err := RunIssueRefresh(ctx, user.ID, device, deps.Issue)
	if err != nil {
		res.Failure, res.Err = LoginFailureIssue, err
		return res
	}

	res.AccessToken = access
	res.RefreshToken = refresh
	res.RefreshRowID = row.ID
	return res
}

func rehashIfNeeded(ctx context.Context, user *store.User, password string, deps LoginDeps, logger *zap.Logger) bool {
	needs, err := deps.Hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return false
	}
	hash, err := deps.Hasher.Hash(password)
	if err != nil {
		logger.Warn("goIdentity: password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	if _, err := deps.Users.UpdateUser(ctx, user.ID, store.UserUpdate{PasswordHash: &hash}, deps.Now()); err != nil {
		logger.Warn("goIdentity: password rehash not persisted", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	return true
}
