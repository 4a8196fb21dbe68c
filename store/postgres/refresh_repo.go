package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
)

// RefreshTokenRepo implements store.RefreshTokenStore.
type RefreshTokenRepo struct{ db *DB }

// NewRefreshTokenRepo constructs a refresh token repository.
func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qInsertRefresh = `
INSERT INTO refresh_tokens (id, token_hash, user_id, device, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	qSelectRefresh = `
SELECT id, token_hash, user_id, device, created_at, expires_at, revoked_at, replaced_by, last_used_at
FROM refresh_tokens WHERE id=$1`
	qRotateRefresh = `
UPDATE refresh_tokens
SET revoked_at = $2, replaced_by = $3, last_used_at = $2
WHERE id = $1 AND revoked_at IS NULL`
	qRevokeRefresh = `
UPDATE refresh_tokens SET revoked_at = $2
WHERE id = $1 AND revoked_at IS NULL`
	qRevokeAllRefresh = `
UPDATE refresh_tokens SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL`
	qRefreshExists = `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id=$1)`
)

// CreateRefreshToken inserts a fresh row.
func (r *RefreshTokenRepo) CreateRefreshToken(ctx context.Context, t *session.RefreshToken) error {
	_, err := r.db.Pool.Exec(ctx, qInsertRefresh, t.ID, t.TokenHash, t.UserID, t.Device, t.CreatedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

// GetRefreshToken selects one row by id.
func (r *RefreshTokenRepo) GetRefreshToken(ctx context.Context, id string) (*session.RefreshToken, error) {
	var t session.RefreshToken
	row := r.db.Pool.QueryRow(ctx, qSelectRefresh, id)
	err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.Device, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.ReplacedBy, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// RotateRefreshToken inserts successor and conditionally revokes oldID in
// one transaction. A zero-row update rolls the insert back.
func (r *RefreshTokenRepo) RotateRefreshToken(ctx context.Context, oldID string, successor *session.RefreshToken, now time.Time) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, qInsertRefresh,
			successor.ID, successor.TokenHash, successor.UserID, successor.Device, successor.CreatedAt, successor.ExpiresAt,
		); err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		tag, err := tx.Exec(ctx, qRotateRefresh, oldID, now, successor.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrAlreadyRevoked
		}
		return nil
	})
}

// RevokeRefreshToken revokes one active row.
func (r *RefreshTokenRepo) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, qRevokeRefresh, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, qRefreshExists, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrAlreadyRevoked
}

// RevokeAllForUser revokes every active row of userID.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, qRevokeAllRefresh, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
