package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/store"
)

// ErrForeignRefreshToken rejects a logout presenting another user's refresh token.
var ErrForeignRefreshToken = errors.New("refresh token belongs to another user")

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Now      func() time.Time
	Tokens   store.RefreshTokenStore
	Denylist func(ctx context.Context, jti string, ttl time.Duration) error
}

// LogoutInput names what a single-device logout invalidates.
type LogoutInput struct {
	UserID       string
	RefreshToken string
	JTI          string
	ExpiresAt    time.Time
}

type LogoutResult struct {
	RowID      string
	Revoked    bool
	Denylisted bool
	Err        error
}

// RunLogout revokes the presented refresh row (no fleet cascade) and
// denylists the access token for its remaining lifetime. Both halves are
// attempted even when one fails.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) LogoutResult {
	var res LogoutResult
	var errs []error
	now := deps.Now()

	if in.RefreshToken != "" {
		rowID, _, err := internal.DecodeRefreshToken(in.RefreshToken)
		switch {
		case err != nil:
			errs = append(errs, err)
		default:
			res.RowID = rowID
			if err := revokeOwnedRow(ctx, rowID, in.UserID, now, deps); err != nil {
				errs = append(errs, err)
			} else {
				res.Revoked = true
			}
		}
	}

	if in.JTI != "" {
		if err := deps.Denylist(ctx, in.JTI, in.ExpiresAt.Sub(now)); err != nil {
			errs = append(errs, err)
		} else {
			res.Denylisted = true
		}
	}

	res.Err = errors.Join(errs...)
	return res
}

func revokeOwnedRow(ctx context.Context, rowID, userID string, now time.Time, deps LogoutDeps) error {
	row, err := deps.Tokens.GetRefreshToken(ctx, rowID)
	if err != nil {
		return err
	}
	if userID != "" && row.UserID != userID {
		return fmt.Errorf("%w: row %s", ErrForeignRefreshToken, rowID)
	}
	err = deps.Tokens.RevokeRefreshToken(ctx, rowID, now)
	if err != nil && !errors.Is(err, store.ErrAlreadyRevoked) {
		return err
	}
	return nil
}
