package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

const (
	auditEntityAuth         = "Auth"
	auditEntityRefreshToken = "RefreshToken"
	auditEntityUser         = "User"
	auditEntityPassword     = "PasswordReset"
)

// auditRecord is what an engine operation knows about an audited event. The
// actor and request context are taken from ctx when the entry is built.
type auditRecord struct {
	action     store.ActionType
	entityType string
	entityID   string
	status     store.Status
	reason     string
	changes    map[string]any

	// subjectUserID names the affected user when the actor is the system,
	// e.g. a refresh performed before any access token was presented.
	subjectUserID string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	now := e.now().UTC()
	id, err := internal.NewRowID(now)
	if err != nil {
		e.auditFailed(store.ActivityLog{EntityType: rec.entityType, EntityID: rec.entityID, ActionType: rec.action}, err)
		return
	}

	actor := ActorFromContext(ctx)
	entry := store.ActivityLog{
		ID:            id,
		ActorSnapshot: store.ActorSnapshot{Email: actor.Email, Roles: append([]string(nil), actor.Roles...)},
		ActionType:    rec.action,
		Status:        rec.status,
		EntityType:    rec.entityType,
		EntityID:      rec.entityID,
		Changes:       rec.changes,
		Context: store.RequestContext{
			IP:        clientIPFromContext(ctx),
			UserAgent: userAgentFromContext(ctx),
		},
		FailureReason: rec.reason,
		CreatedAt:     now,
	}
	if !actor.IsSystem() {
		entry.ActorID = actor.ID
	}
	if rec.subjectUserID != "" && actor.ID != rec.subjectUserID {
		if entry.Changes == nil {
			entry.Changes = map[string]any{}
		}
		entry.Changes["userId"] = rec.subjectUserID
	}

	e.audit.Emit(ctx, entry)
}

// enrichAuditEntry fills the snapshot email for actors built from a token,
// which does not carry it. The dispatcher calls it on its own goroutine when
// auditing is async.
func (e *Engine) enrichAuditEntry(ctx context.Context, entry *store.ActivityLog) {
	if entry.ActorID == "" || entry.ActorSnapshot.Email != "" {
		return
	}
	u, err := e.store.GetUserByID(ctx, entry.ActorID)
	if err != nil {
		return
	}
	entry.ActorSnapshot.Email = u.Email
}

func (e *Engine) auditFailed(entry audit.Entry, err error) {
	e.metricInc(MetricAuditFailure)
	e.logger.Warn("goIdentity: audit write failed",
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID),
		zap.String("action", string(entry.ActionType)),
		zap.Error(err))
}
