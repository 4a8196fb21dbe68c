package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureLockUnavailable
	RefreshFailureLockConflict
	RefreshFailureNotFound
	RefreshFailureStore
	RefreshFailureReuse
	RefreshFailureExpired
	RefreshFailureSecretMismatch
	RefreshFailureStale
	RefreshFailureUserNotFound
	RefreshFailureIssue
)

// Theft reports whether the failure triggered fleet revocation.
func (k RefreshFailureKind) Theft() bool {
	return k == RefreshFailureReuse || k == RefreshFailureSecretMismatch
}

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error

	RowID  string
	UserID string

	Successor    *session.RefreshToken
	AccessToken  string
	RefreshToken string

	// FleetRevoked counts active rows revoked by theft containment.
	FleetRevoked int64
}

// RefreshLocker is the per-row mutual exclusion held for one rotation.
type RefreshLocker interface {
	AcquireRefreshLock(ctx context.Context, rowID, owner string, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, rowID, owner string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	LockTTL time.Duration
	Locker  RefreshLocker
	Issue   IssueDeps

	// IssueAccess loads userID and signs an access token with freshly
	// resolved permissions. A vanished user surfaces as store.ErrNotFound.
	IssueAccess func(ctx context.Context, userID string) (string, error)

	Logger *zap.Logger
}

// RunRefresh validates, rotates and re-issues a refresh token under the row lock.
//
// Presenting a revoked row, or an active row with the wrong secret, revokes
// every active row of the owning user before failing.
func RunRefresh(ctx context.Context, refreshToken, device string, deps RefreshDeps) (res RefreshResult) {
	logger := orNop(deps.Logger)

	rowID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	res.RowID = rowID

	owner, err := internal.NewLockNonce()
	if err != nil {
		res.Failure, res.Err = RefreshFailureLockUnavailable, err
		return res
	}
	acquired, err := deps.Locker.AcquireRefreshLock(ctx, rowID, owner, deps.LockTTL)
	if err != nil {
		res.Failure, res.Err = RefreshFailureLockUnavailable, err
		return res
	}
	if !acquired {
		res.Failure = RefreshFailureLockConflict
		return res
	}
	defer func() {
		// The request context may already be done; the lock must still go.
		releaseCtx := context.WithoutCancel(ctx)
		if err := deps.Locker.ReleaseRefreshLock(releaseCtx, rowID, owner); err != nil {
			if errors.Is(err, session.ErrLockNotHeld) {
				logger.Warn("goIdentity: refresh lock expired before release", zap.String("row_id", rowID), zap.Duration("lock_ttl", deps.LockTTL))
				return
			}
			logger.Warn("goIdentity: refresh lock release failed", zap.String("row_id", rowID), zap.Error(err))
		}
	}()

	row, err := deps.Issue.Tokens.GetRefreshToken(ctx, rowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Failure, res.Err = RefreshFailureNotFound, err
			return res
		}
		res.Failure, res.Err = RefreshFailureStore, err
		return res
	}
	res.UserID = row.UserID
	now := deps.Issue.Now()

	if row.RevokedAt != nil {
		res.FleetRevoked, res.Err = revokeFleet(ctx, row.UserID, now, deps, logger)
		res.Failure = RefreshFailureReuse
		return res
	}

	if !now.Before(row.ExpiresAt) {
		if err := deps.Issue.Tokens.RevokeRefreshToken(ctx, rowID, now); err != nil && !errors.Is(err, store.ErrAlreadyRevoked) {
			logger.Warn("goIdentity: expired refresh row not revoked", zap.String("row_id", rowID), zap.Error(err))
		}
		res.Failure = RefreshFailureExpired
		return res
	}

	if !internal.RefreshSecretMatches(secret, row.TokenHash) {
		res.FleetRevoked, res.Err = revokeFleet(ctx, row.UserID, now, deps, logger)
		res.Failure = RefreshFailureSecretMismatch
		return res
	}

	if device == "" {
		device = row.Device
	}
	successor, token, err := NewRefreshRow(row.UserID, device, deps.Issue)
	if err != nil {
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}

	// Sign before committing so a rotation never commits without a response.
	access, err := deps.IssueAccess(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Failure, res.Err = RefreshFailureUserNotFound, err
			return res
		}
		res.Failure, res.Err = RefreshFailureIssue, err
		return res
	}

	if err := deps.Issue.Tokens.RotateRefreshToken(ctx, rowID, successor, now); err != nil {
		if errors.Is(err, store.ErrAlreadyRevoked) {
			res.Failure, res.Err = RefreshFailureStale, err
			return res
		}
		res.Failure, res.Err = RefreshFailureStore, err
		return res
	}

	res.Successor = successor
	res.AccessToken = access
	res.RefreshToken = token
	return res
}

func revokeFleet(ctx context.Context, userID string, now time.Time, deps RefreshDeps, logger *zap.Logger) (int64, error) {
	n, err := deps.Issue.Tokens.RevokeAllForUser(context.WithoutCancel(ctx), userID, now)
	if err != nil {
		logger.Error("goIdentity: fleet revocation failed", zap.String("user_id", userID), zap.Error(err))
	}
	return n, err
}
