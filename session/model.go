package session

import "time"

// State is the lifecycle position of a refresh token row.
type State uint8

const (
	StateActive State = iota
	// StateRotated marks a row revoked because a successor replaced it.
	StateRotated
	// StateRevoked marks a row revoked by logout, reset or a fleet revoke.
	StateRevoked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotated:
		return "rotated"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RefreshToken is a persisted refresh token row. The secret is never
// stored; TokenHash holds its hex SHA-256 digest. Rows are append-only:
// once RevokedAt is set it is never cleared.
type RefreshToken struct {
	ID         string
	TokenHash  string
	UserID     string
	Device     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	LastUsedAt *time.Time
}

// State derives the row lifecycle at now. Revocation wins over expiry.
func (t *RefreshToken) State(now time.Time) State {
	if t.RevokedAt != nil {
		if t.ReplacedBy != nil && *t.ReplacedBy != "" {
			return StateRotated
		}
		return StateRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Clone returns a deep copy so callers cannot mutate stored pointers.
func (t *RefreshToken) Clone() *RefreshToken {
	if t == nil {
		return nil
	}
	out := *t
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		out.RevokedAt = &v
	}
	if t.ReplacedBy != nil {
		v := *t.ReplacedBy
		out.ReplacedBy = &v
	}
	if t.LastUsedAt != nil {
		v := *t.LastUsedAt
		out.LastUsedAt = &v
	}
	return &out
}
