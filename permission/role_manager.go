package permission

import (
	"errors"
	"sort"
	"sync"
)

// Built-in role names.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Subjects used by the identity service itself.
const (
	SubjectUser        = "User"
	SubjectUserSelf    = "UserSelf"
	SubjectActivityLog = "ActivityLog"
)

var (
	// ErrRoleManagerFrozen is returned when registering after Freeze.
	ErrRoleManagerFrozen = errors.New("role manager frozen")
	// ErrUnknownRole is returned when a role name is not registered.
	ErrUnknownRole = errors.New("unknown role")
)

// RoleManager is a catalog of role definitions keyed by name.
//
// RoleManager instances are intended to be configured during initialization
// and frozen before serving traffic.
type RoleManager struct {
	mu     sync.RWMutex
	roles  map[string]Role
	frozen bool
}

// NewRoleManager returns an empty catalog.
func NewRoleManager() *RoleManager {
	return &RoleManager{roles: make(map[string]Role)}
}

// DefaultRoleManager returns a frozen catalog holding the seed roles:
// ADMIN with MANAGE:all, and USER with READ/UPDATE on UserSelf.
func DefaultRoleManager() *RoleManager {
	rm := NewRoleManager()
	_ = rm.RegisterRole(RoleAdmin, []string{"MANAGE:all"})
	_ = rm.RegisterRole(RoleUser, []string{"READ:UserSelf", "UPDATE:UserSelf"})
	rm.Freeze()
	return rm
}

// RegisterRole adds a role from wire-form permission strings.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrRoleManagerFrozen
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	perms := make([]Permission, 0, len(permissionNames))
	for _, name := range permissionNames {
		p, err := Parse(name)
		if err != nil {
			return errors.New("invalid permission for role " + roleName + ": " + name)
		}
		perms = append(perms, p)
	}

	rm.roles[roleName] = Role{Name: roleName, Permissions: perms}
	return nil
}

// Get returns a copy of the named role.
func (rm *RoleManager) Get(roleName string) (Role, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	r, ok := rm.roles[roleName]
	if !ok {
		return Role{}, false
	}
	r.Permissions = append([]Permission(nil), r.Permissions...)
	return r, true
}

// Resolve maps names to roles, failing on the first unknown name.
func (rm *RoleManager) Resolve(names []string) ([]Role, error) {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		r, ok := rm.Get(n)
		if !ok {
			return nil, errors.Join(ErrUnknownRole, errors.New(n))
		}
		out = append(out, r)
	}
	return out, nil
}

// Names returns the registered role names, sorted.
func (rm *RoleManager) Names() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]string, 0, len(rm.roles))
	for n := range rm.roles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Freeze rejects further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
