package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

// Register creates an account with Permission.DefaultRole. It is throttled
// per email and per client IP.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		return nil, ErrFeatureDisabled
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}, clientIPFromContext(ctx))

	rec := auditRecord{
		action:     store.ActionCreate,
		entityType: auditEntityUser,
		status:     store.StatusSuccess,
	}

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricAccountCreationSuccess)
		rec.entityID = res.User.ID
		rec.changes = map[string]any{"after": userView(res.User)}
		e.emitAudit(WithActor(ctx, actorFromUser(res.User)), rec)
		return res.User, nil
	case flows.RegisterFailureRateLimited:
		e.metricInc(MetricRateLimitHit)
		err, rec.reason = ErrRateLimited, "Rate limited"
	case flows.RegisterFailureThrottleUnavailable:
		err, rec.reason = fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err), "Throttle backend unavailable"
	case flows.RegisterFailurePolicy:
		err, rec.reason = res.Err, "Password policy"
	case flows.RegisterFailureExists:
		e.metricInc(MetricAccountCreationDuplicate)
		err, rec.reason = ErrAccountExists, "Email already registered"
	case flows.RegisterFailureUnknownRole:
		err, rec.reason = ErrInvalidRole, "Default role missing"
	default:
		err, rec.reason = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err), "Account creation failed"
	}

	rec.status = store.StatusFailed
	e.emitAudit(ctx, rec)
	return nil, err
}

// Me returns the account of userID.
func (e *Engine) Me(ctx context.Context, userID string) (*User, error) {
	u, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return u, nil
}

// UpdateSelf changes the caller's own name and/or password. A password
// change revokes every refresh token of the account. The cached permission
// set of the caller is dropped after every successful update.
func (e *Engine) UpdateSelf(ctx context.Context, userID string, in SelfUpdate) (*User, error) {
	before, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, err.Error())
		return nil, mapStoreError(err)
	}

	update := store.UserUpdate{Name: in.Name}
	fields := make([]string, 0, 2)
	if in.Name != nil {
		fields = append(fields, "name")
	}
	if in.Password != nil {
		if err := e.validatePassword(*in.Password); err != nil {
			e.auditUserFailure(ctx, store.ActionUpdate, userID, "Password policy")
			return nil, err
		}
		hash, err := e.passwordHash.Hash(*in.Password)
		if err != nil {
			e.auditUserFailure(ctx, store.ActionUpdate, userID, "Password hashing failed")
			return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		update.PasswordHash = &hash
		fields = append(fields, "password")
	}
	if len(fields) == 0 {
		return before, nil
	}

	now := e.now()
	after, err := e.store.UpdateUser(ctx, userID, update, now)
	if err != nil {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, err.Error())
		return nil, mapStoreError(err)
	}
	e.resolver.ClearCacheForUser(ctx, userID)

	changes := map[string]any{"before": userView(before), "after": userView(after), "fields": fields}
	if update.PasswordHash != nil {
		n, err := e.store.RevokeAllForUser(ctx, userID, now)
		if err != nil {
			e.logger.Error("goIdentity: session revocation after password change failed", zap.String("user_id", userID), zap.Error(err))
		}
		changes["sessionsRevoked"] = n
	}

	e.emitAudit(ctx, auditRecord{
		action:     store.ActionUpdate,
		entityType: auditEntityUser,
		entityID:   userID,
		status:     store.StatusSuccess,
		changes:    changes,
	})
	return after, nil
}

// UpdateUserRoles replaces the roles of userID and drops its cached
// permission set. Access tokens already issued keep their embedded
// permissions until they expire.
func (e *Engine) UpdateUserRoles(ctx context.Context, userID string, roleNames []string) (*User, error) {
	if len(roleNames) == 0 {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, "No roles given")
		return nil, fmt.Errorf("%w: at least one role required", ErrInvalidRole)
	}
	if _, err := e.roles.Resolve(roleNames); err != nil {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}

	before, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, err.Error())
		return nil, mapStoreError(err)
	}
	after, err := e.store.SetUserRoles(ctx, userID, roleNames, e.now())
	if err != nil {
		e.auditUserFailure(ctx, store.ActionUpdate, userID, err.Error())
		return nil, mapStoreError(err)
	}

	e.resolver.ClearCacheForUser(ctx, userID)
	e.metricInc(MetricRoleChange)
	e.emitAudit(ctx, auditRecord{
		action:     store.ActionUpdate,
		entityType: auditEntityUser,
		entityID:   userID,
		status:     store.StatusSuccess,
		changes: map[string]any{
			"before": map[string]any{"roles": before.RoleNames()},
			"after":  map[string]any{"roles": after.RoleNames()},
		},
	})
	return after, nil
}

// DeleteUser revokes every refresh token of userID, removes the account and
// drops its cached permissions.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	before, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		e.auditUserFailure(ctx, store.ActionDelete, userID, err.Error())
		return mapStoreError(err)
	}

	revoked, err := e.store.RevokeAllForUser(ctx, userID, e.now())
	if err != nil {
		e.auditUserFailure(ctx, store.ActionDelete, userID, "Session revocation failed: "+err.Error())
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.store.DeleteUser(ctx, userID); err != nil {
		e.auditUserFailure(ctx, store.ActionDelete, userID, err.Error())
		return mapStoreError(err)
	}

	e.resolver.ClearCacheForUser(ctx, userID)
	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditRecord{
		action:     store.ActionDelete,
		entityType: auditEntityUser,
		entityID:   userID,
		status:     store.StatusSuccess,
		changes:    map[string]any{"before": userView(before), "sessionsRevoked": revoked},
	})
	return nil
}

func (e *Engine) auditUserFailure(ctx context.Context, action store.ActionType, userID, reason string) {
	e.emitAudit(ctx, auditRecord{
		action:     action,
		entityType: auditEntityUser,
		entityID:   userID,
		status:     store.StatusFailed,
		reason:     reason,
	})
}

// Authorize reports ErrPermissionDenied unless actor holds (action, subject).
// The system actor is always allowed.
func (e *Engine) Authorize(actor Actor, action permission.Action, subject string) error {
	if actor.IsSystem() {
		return nil
	}
	if !actor.Permissions.Can(action, subject) {
		return ErrPermissionDenied
	}
	return nil
}

// userView is the audited representation of a user. The password hash is
// never recorded.
func userView(u *User) map[string]any {
	return map[string]any{
		"email": u.Email,
		"name":  u.Name,
		"roles": u.RoleNames(),
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrUnknownRole):
		return ErrInvalidRole
	case errors.Is(err, store.ErrConflict):
		return ErrAccountExists
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
