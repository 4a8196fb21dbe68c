package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
)

// UserRepo implements store.UserStore.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	qInsertUser = `
INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	qInsertUserRole = `INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)`
	qSelectUserByID = `
SELECT id, email, name, password_hash, created_at, updated_at
FROM users WHERE id=$1`
	qSelectUserByEmail = `
SELECT id, email, name, password_hash, created_at, updated_at
FROM users WHERE email=$1`
	qSelectUserRoles = `
SELECT ur.role_name, rp.action, rp.subject
FROM user_roles ur
LEFT JOIN role_permissions rp ON rp.role_name = ur.role_name
WHERE ur.user_id = $1
ORDER BY ur.role_name`
	qUpdateUser = `
UPDATE users
SET name = COALESCE($2, name), password_hash = COALESCE($3, password_hash), updated_at = $4
WHERE id = $1`
	qTouchUser       = `UPDATE users SET updated_at = $2 WHERE id = $1`
	qDeleteUserRoles = `DELETE FROM user_roles WHERE user_id = $1`
	qDeleteUser      = `DELETE FROM users WHERE id = $1`
)

// CreateUser inserts the user and its role assignments in one transaction.
func (r *UserRepo) CreateUser(ctx context.Context, u *store.User, roleNames []string) error {
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, qInsertUser, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt); err != nil {
			return err
		}
		return insertRoles(ctx, tx, u.ID, roleNames)
	})
	switch {
	case isUniqueViolation(err):
		return store.ErrConflict
	case isForeignKeyViolation(err):
		return store.ErrUnknownRole
	}
	return err
}

func insertRoles(ctx context.Context, tx pgx.Tx, userID string, roleNames []string) error {
	for _, role := range roleNames {
		if _, err := tx.Exec(ctx, qInsertUserRole, userID, role); err != nil {
			return err
		}
	}
	return nil
}

// GetUserByID selects a user and its roles.
func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return r.getUser(ctx, qSelectUserByID, id)
}

// GetUserByEmail selects a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return r.getUser(ctx, qSelectUserByEmail, email)
}

func (r *UserRepo) getUser(ctx context.Context, q string, arg string) (*store.User, error) {
	var u store.User
	row := r.db.Pool.QueryRow(ctx, q, arg)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	roles, err := loadRoles(ctx, r.db.Pool, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func loadRoles(ctx context.Context, q querier, userID string) ([]permission.Role, error) {
	rows, err := q.Query(ctx, qSelectUserRoles, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]permission.Role, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			name            string
			action, subject *string
		)
		if err := rows.Scan(&name, &action, &subject); err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			i = len(roles)
			index[name] = i
			roles = append(roles, permission.Role{Name: name, Permissions: []permission.Permission{}})
		}
		if action == nil || subject == nil {
			continue
		}
		roles[i].Permissions = append(roles[i].Permissions, permission.Permission{
			Action:  permission.Action(*action),
			Subject: *subject,
		})
	}
	return roles, rows.Err()
}

// UpdateUser applies non-nil fields and returns the fresh row.
func (r *UserRepo) UpdateUser(ctx context.Context, id string, update store.UserUpdate, now time.Time) (*store.User, error) {
	tag, err := r.db.Pool.Exec(ctx, qUpdateUser, id, update.Name, update.PasswordHash, now)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

// SetUserRoles replaces the user's role assignments.
func (r *UserRepo) SetUserRoles(ctx context.Context, id string, roleNames []string, now time.Time) (*store.User, error) {
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, qTouchUser, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		if _, err := tx.Exec(ctx, qDeleteUserRoles, id); err != nil {
			return err
		}
		return insertRoles(ctx, tx, id, roleNames)
	})
	if isForeignKeyViolation(err) {
		return nil, store.ErrUnknownRole
	}
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// DeleteUser removes the account; role assignments cascade.
func (r *UserRepo) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, qDeleteUser, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RolesForUser satisfies permission.Source.
func (r *UserRepo) RolesForUser(ctx context.Context, userID string) ([]permission.Role, error) {
	return loadRoles(ctx, r.db.Pool, userID)
}
