package permission

import (
	"errors"
	"sort"
	"strings"
)

// Action is a verb a permission grants.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	// ActionManage implies every other action on the same subject.
	ActionManage Action = "MANAGE"
)

// SubjectAll is the wildcard subject.
const SubjectAll = "all"

// ErrInvalidPermission is returned when a permission string cannot be parsed.
var ErrInvalidPermission = errors.New("invalid permission")

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Permission is an (action, subject) grant.
type Permission struct {
	Action  Action `json:"action"`
	Subject string `json:"subject"`
}

// String returns the wire form "ACTION:subject".
func (p Permission) String() string {
	return string(p.Action) + ":" + p.Subject
}

// Parse decodes "ACTION:subject". The action is case-insensitive; the
// subject is kept verbatim.
func Parse(raw string) (Permission, error) {
	action, subject, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || subject == "" {
		return Permission{}, ErrInvalidPermission
	}
	p := Permission{Action: Action(strings.ToUpper(action)), Subject: subject}
	if !p.Action.Valid() {
		return Permission{}, ErrInvalidPermission
	}
	return p, nil
}

// MustParse is Parse for static tables. It panics on invalid input.
func MustParse(raw string) Permission {
	p, err := Parse(raw)
	if err != nil {
		panic("permission: " + raw + ": " + err.Error())
	}
	return p
}

// Role is a named bundle of permissions.
type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// Set is a deduplicated, sorted list of permissions.
type Set []Permission

// Flatten merges every role's permissions into a [Set].
func Flatten(roles []Role) Set {
	seen := make(map[Permission]struct{})
	out := make(Set, 0)
	for _, r := range roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Can reports whether the set allows action on subject.
func (s Set) Can(action Action, subject string) bool {
	for _, p := range s {
		if p.Subject != subject && p.Subject != SubjectAll {
			continue
		}
		if p.Action == action || p.Action == ActionManage {
			return true
		}
	}
	return false
}

// Strings returns the wire form of every permission, in set order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.String()
	}
	return out
}

// FromStrings parses wire-form permissions, skipping entries that do not parse.
func FromStrings(raw []string) Set {
	roles := []Role{{Permissions: make([]Permission, 0, len(raw))}}
	for _, r := range raw {
		p, err := Parse(r)
		if err != nil {
			continue
		}
		roles[0].Permissions = append(roles[0].Permissions, p)
	}
	return Flatten(roles)
}

// RoleNames returns the names of roles in input order.
func RoleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Name
	}
	return out
}
