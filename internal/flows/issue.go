package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
)

// IssueDeps builds new refresh rows. Shared by login and rotation.
type IssueDeps struct {
	Now        func() time.Time
	RefreshTTL time.Duration
	SecretSize int
	Tokens     store.RefreshTokenStore
}

// NewRefreshRow mints a secret and the row that stores its hash. The row is
// not persisted; the caller decides between a plain insert and a rotation.
func NewRefreshRow(userID, device string, deps IssueDeps) (*session.RefreshToken, string, error) {
	now := deps.Now()
	id, err := internal.NewRowID(now)
	if err != nil {
		return nil, "", err
	}
	secret, err := internal.NewRefreshSecret(deps.SecretSize)
	if err != nil {
		return nil, "", err
	}
	row := &session.RefreshToken{
		ID:        id,
		TokenHash: internal.HashRefreshSecret(secret),
		UserID:    userID,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.RefreshTTL),
	}
	return row, internal.EncodeRefreshToken(id, secret), nil
}

// RunIssueRefresh creates and persists a refresh row for a fresh login.
func RunIssueRefresh(ctx context.Context, userID, device string, deps IssueDeps) (*session.RefreshToken, string, error) {
	row, token, err := NewRefreshRow(userID, device, deps)
	if err != nil {
		return nil, "", err
	}
	if err := deps.Tokens.CreateRefreshToken(ctx, row); err != nil {
		return nil, "", err
	}
	return row, token, nil
}
