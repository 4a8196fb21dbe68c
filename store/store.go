package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyRevoked is returned when a conditional revoke or rotation
	// finds the row already revoked.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")
	// ErrUnknownRole is returned when a role name has no definition.
	ErrUnknownRole = errors.New("unknown role")
)

// User is an account with its assigned roles expanded.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Roles        []permission.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleNames returns the names of the user's roles.
func (u *User) RoleNames() []string {
	return permission.RoleNames(u.Roles)
}

// UserUpdate carries optional field changes. Nil fields are left untouched.
type UserUpdate struct {
	Name         *string
	PasswordHash *string
}

// UserStore persists accounts and role assignments.
type UserStore interface {
	CreateUser(ctx context.Context, u *User, roleNames []string) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate, now time.Time) (*User, error)
	SetUserRoles(ctx context.Context, id string, roleNames []string, now time.Time) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	// RolesForUser satisfies permission.Source.
	RolesForUser(ctx context.Context, userID string) ([]permission.Role, error)
}

// RefreshTokenStore persists refresh token rows. Rows are never deleted and
// never un-revoked.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, t *session.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (*session.RefreshToken, error)
	// RotateRefreshToken inserts successor and marks oldID revoked, replaced
	// by successor and last used at now, in one transaction. It fails with
	// ErrAlreadyRevoked and persists nothing when oldID is already revoked.
	RotateRefreshToken(ctx context.Context, oldID string, successor *session.RefreshToken, now time.Time) error
	// RevokeRefreshToken revokes one active row. It returns ErrAlreadyRevoked
	// when the row was already revoked.
	RevokeRefreshToken(ctx context.Context, id string, now time.Time) error
	// RevokeAllForUser revokes every active row of userID and returns how
	// many rows changed.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

// ActivityLogStore persists the audit trail.
type ActivityLogStore interface {
	InsertActivityLog(ctx context.Context, entry *ActivityLog) error
	// ListActivityLogs returns one page, newest first, and the total count.
	ListActivityLogs(ctx context.Context, page, limit int) ([]ActivityLog, int, error)
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	UserStore
	RefreshTokenStore
	ActivityLogStore
}
