// Package memory is a mutex-guarded, in-process implementation of
// store.Store. It mirrors the conditional-update semantics of the Postgres
// store and is used by tests, the load test and the minimal example.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
)

// Store holds every table in maps behind one mutex.
type Store struct {
	mu sync.RWMutex

	roles *permission.RoleManager

	users      map[string]*userRow
	emailIndex map[string]string
	refresh    map[string]*session.RefreshToken
	logs       []store.ActivityLog

	reads atomic.Int64
}

type userRow struct {
	user      store.User
	roleNames []string
}

// New returns an empty store resolving role names through roles. A nil
// catalog uses permission.DefaultRoleManager.
func New(roles *permission.RoleManager) *Store {
	if roles == nil {
		roles = permission.DefaultRoleManager()
	}
	return &Store{
		roles:      roles,
		users:      make(map[string]*userRow),
		emailIndex: make(map[string]string),
		refresh:    make(map[string]*session.RefreshToken),
	}
}

// Reads returns how many row reads the store served. Tests use it to prove
// a code path never touched storage.
func (s *Store) Reads() int64 {
	return s.reads.Load()
}

func (s *Store) materialize(row *userRow) (*store.User, error) {
	roles, err := s.roles.Resolve(row.roleNames)
	if err != nil {
		return nil, store.ErrUnknownRole
	}
	u := row.user
	u.Roles = roles
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u *store.User, roleNames []string) error {
	if _, err := s.roles.Resolve(roleNames); err != nil {
		return store.ErrUnknownRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.emailIndex[email]; exists {
		return store.ErrConflict
	}
	if _, exists := s.users[u.ID]; exists {
		return store.ErrConflict
	}

	row := &userRow{user: *u, roleNames: append([]string(nil), roleNames...)}
	row.user.Email = email
	row.user.Roles = nil
	s.users[u.ID] = row
	s.emailIndex[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*store.User, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.materialize(row)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.materialize(s.users[id])
}

func (s *Store) UpdateUser(_ context.Context, id string, update store.UserUpdate, now time.Time) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Name != nil {
		row.user.Name = *update.Name
	}
	if update.PasswordHash != nil {
		row.user.PasswordHash = *update.PasswordHash
	}
	row.user.UpdatedAt = now
	return s.materialize(row)
}

func (s *Store) SetUserRoles(_ context.Context, id string, roleNames []string, now time.Time) (*store.User, error) {
	if _, err := s.roles.Resolve(roleNames); err != nil {
		return nil, store.ErrUnknownRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	row.roleNames = append([]string(nil), roleNames...)
	row.user.UpdatedAt = now
	return s.materialize(row)
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.emailIndex, row.user.Email)
	delete(s.users, id)
	return nil
}

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]permission.Role, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Roles, nil
}

func (s *Store) CreateRefreshToken(_ context.Context, t *session.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refresh[t.ID]; exists {
		return store.ErrConflict
	}
	s.refresh[t.ID] = t.Clone()
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, id string) (*session.RefreshToken, error) {
	s.reads.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.refresh[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *Store) RotateRefreshToken(_ context.Context, oldID string, successor *session.RefreshToken, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refresh[oldID]
	if !ok {
		return store.ErrNotFound
	}
	if old.RevokedAt != nil {
		return store.ErrAlreadyRevoked
	}
	if _, exists := s.refresh[successor.ID]; exists {
		return store.ErrConflict
	}

	s.refresh[successor.ID] = successor.Clone()
	revokedAt := now
	usedAt := now
	replacedBy := successor.ID
	old.RevokedAt = &revokedAt
	old.LastUsedAt = &usedAt
	old.ReplacedBy = &replacedBy
	return nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.refresh[id]
	if !ok {
		return store.ErrNotFound
	}
	if row.RevokedAt != nil {
		return store.ErrAlreadyRevoked
	}
	revokedAt := now
	row.RevokedAt = &revokedAt
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.refresh {
		if row.UserID != userID || row.RevokedAt != nil {
			continue
		}
		revokedAt := now
		row.RevokedAt = &revokedAt
		n++
	}
	return n, nil
}

// RefreshTokensForUser returns every row of userID ordered by creation.
func (s *Store) RefreshTokensForUser(userID string) []*session.RefreshToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*session.RefreshToken, 0)
	for _, row := range s.refresh {
		if row.UserID == userID {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) InsertActivityLog(_ context.Context, entry *store.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *Store) ListActivityLogs(_ context.Context, page, limit int) ([]store.ActivityLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.logs)
	start := (page - 1) * limit
	if start >= total || start < 0 {
		return []store.ActivityLog{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]store.ActivityLog, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.logs[total-1-i])
	}
	return out, total, nil
}
