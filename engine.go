package goIdentity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
	gjwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Engine is the identity session core: credential verification, token
// issuance, refresh rotation with theft detection, revocation and RBAC.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config         Config
	roles          *permission.RoleManager
	store          store.Store
	sessions       *session.Store
	lockout        *limiters.LockoutLimiter
	resetLimiter   *limiters.PasswordResetLimiter
	accountLimiter *limiters.AccountCreationLimiter
	resolver       *permission.Resolver
	audit          *audit.Dispatcher
	metrics        *Metrics
	passwordHash   *password.Argon2
	jwtManager     *jwt.Manager
	mailer         Mailer
	logger         *zap.Logger
	now            func() time.Time

	flow flows.Service
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many entries the async dispatcher discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Roles returns the role catalog.
func (e *Engine) Roles() *permission.RoleManager {
	return e.roles
}

// JWKS returns the public verification key as a JWK Set.
func (e *Engine) JWKS(ctx context.Context) (json.RawMessage, error) {
	return e.jwtManager.JWKS(ctx)
}

// Ping reports redis reachability.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeCache(ev permission.CacheEvent) {
	switch ev {
	case permission.CacheHit:
		e.metricInc(MetricPermissionCacheHit)
	case permission.CacheMiss:
		e.metricInc(MetricPermissionCacheMiss)
	case permission.CacheError:
		e.metricInc(MetricPermissionCacheError)
	}
}

func (e *Engine) initFlows() {
	issue := flows.IssueDeps{
		Now:        e.now,
		RefreshTTL: e.config.Refresh.TTL,
		SecretSize: e.config.Refresh.SecretSize,
		Tokens:     e.store,
	}

	e.flow = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
			Now:            e.now,
			NormalizeEmail: limiters.NormalizeEmail,
			Lockout:        e.lockout,
			Users:          e.store,
			Hasher:         e.passwordHash,
			Issue:          issue,
			IssueAccess:    e.issueAccess,
			Logger:         e.logger,
		},
		Refresh: flows.RefreshDeps{
			LockTTL:     e.config.Refresh.LockTTL,
			Locker:      e.sessions,
			Issue:       issue,
			IssueAccess: e.issueAccess,
			Logger:      e.logger,
		},
		Validate: flows.ValidateDeps{
			ParseAccess:  e.jwtManager.ParseAccess,
			IsDenylisted: e.sessions.IsDenylisted,
		},
		Logout: flows.LogoutDeps{
			Now:      e.now,
			Tokens:   e.store,
			Denylist: e.sessions.Denylist,
		},
		ForgotReset: flows.ForgotPasswordDeps{
			NormalizeEmail: limiters.NormalizeEmail,
			Throttle:       e.resetLimiter.CheckRequest,
			RateLimited:    limiters.ErrResetRateLimited,
			Users:          e.store,
			CreateReset:    e.jwtManager.CreateReset,
			Deliver:        e.deliverReset,
		},
		PasswordReset: flows.PasswordResetDeps{
			Now:              e.now,
			RevokeSessions:   e.config.PasswordReset.RevokeSessions,
			ParseReset:       e.jwtManager.ParseReset,
			IsDenylisted:     e.sessions.IsDenylisted,
			ClaimJTI:         e.sessions.ClaimJTI,
			ValidatePassword: e.validatePassword,
			HashPassword:     e.passwordHash.Hash,
			Users:            e.store,
			Tokens:           e.store,
			Logger:           e.logger,
		},
		Register: flows.RegisterDeps{
			DefaultRole:      e.config.Permission.DefaultRole,
			Now:              e.now,
			NormalizeEmail:   limiters.NormalizeEmail,
			Throttle:         e.accountLimiter.Enforce,
			RateLimited:      limiters.ErrAccountRateLimited,
			ValidatePassword: e.validatePassword,
			HashPassword:     e.passwordHash.Hash,
			Users:            e.store,
		},
	})
}

// issueAccess loads userID and signs an access token carrying its role
// names and freshly resolved permissions.
func (e *Engine) issueAccess(ctx context.Context, userID string) (string, error) {
	u, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	perms, err := e.resolver.PermissionsForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	token, _, err := e.jwtManager.CreateAccess(u.ID, u.RoleNames(), perms.Strings())
	return token, err
}

func (e *Engine) validatePassword(pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return fmt.Errorf("%w: minimum length is %d", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if len(pw) > password.DefaultMaxPasswordBytes {
		return fmt.Errorf("%w: maximum length is %d bytes", ErrPasswordPolicy, password.DefaultMaxPasswordBytes)
	}
	return nil
}

// Login verifies email and password under the per-email lockout and
// issues an access token plus a refresh token bound to the caller's device.
//
// Every failure is audited with its real cause; callers should pass the
// returned error through [PublicError] before showing it to anyone.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}

	device := internal.DeviceLabel(userAgentFromContext(ctx))
	res := e.flow.Login(ctx, email, pw, device)

	if res.Failure != flows.LoginFailureNone {
		err := e.mapLoginFailure(res)
		e.metricInc(MetricLoginFailure)
		if res.Failure == flows.LoginFailureLocked {
			e.metricInc(MetricLoginLocked)
		}
		if res.LockedNow {
			e.metricInc(MetricLockoutTriggered)
		}
		rec := auditRecord{
			action:     store.ActionExecute,
			entityType: auditEntityAuth,
			status:     store.StatusFailed,
			reason:     loginFailureReason(res),
			changes:    map[string]any{"event": "login", "email": res.Email},
		}
		if res.User != nil {
			rec.entityID = res.User.ID
		}
		e.emitAudit(ctx, rec)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	actor := actorFromUser(res.User)
	e.emitAudit(WithActor(ctx, actor), auditRecord{
		action:     store.ActionExecute,
		entityType: auditEntityAuth,
		entityID:   res.User.ID,
		status:     store.StatusSuccess,
		changes:    map[string]any{"event": "login", "device": device, "refreshTokenId": res.RefreshRowID},
	})

	perms, err := e.resolver.PermissionsForUser(ctx, res.User.ID)
	if err != nil {
		e.logger.Warn("goIdentity: permissions unavailable after login", zap.String("user_id", res.User.ID), zap.Error(err))
	}

	return &LoginResult{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		Permissions:  perms,
	}, nil
}

func (e *Engine) mapLoginFailure(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureLockoutUnavailable:
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
	case flows.LoginFailureLocked:
		return ErrAccountLocked
	case flows.LoginFailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.LoginFailureStore:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err)
	}
}

func loginFailureReason(res flows.LoginResult) string {
	switch res.Failure {
	case flows.LoginFailureLocked:
		return "Account locked"
	case flows.LoginFailureInvalidCredentials:
		if res.LockedNow {
			return "Invalid credentials; lockout threshold reached"
		}
		return "Invalid credentials"
	case flows.LoginFailureLockoutUnavailable:
		return "Lockout backend unavailable"
	case flows.LoginFailureStore:
		return "Identity store unavailable"
	default:
		return "Session issuance failed"
	}
}

// Refresh rotates a refresh token. The device label of the successor comes
// from the request's User-Agent, falling back to the predecessor's label.
//
// Presenting a revoked token, or the right row id with the wrong secret,
// revokes every active refresh token of the owner and returns
// [ErrTheftDetected]. A concurrent refresh of the same token returns
// [ErrLockConflict]; the caller may retry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	device := ""
	if ua := userAgentFromContext(ctx); ua != "" {
		device = internal.DeviceLabel(ua)
	}
	res := e.flow.Refresh(ctx, refreshToken, device)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}

	if res.Failure != flows.RefreshFailureNone {
		return nil, e.refreshFailed(ctx, res)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRecord{
		action:     store.ActionUpdate,
		entityType: auditEntityRefreshToken,
		entityID:   res.RowID,
		status:     store.StatusSuccess,
		changes: map[string]any{
			"before": map[string]any{"revokedAt": nil, "replacedBy": nil},
			"after":  map[string]any{"revokedAt": res.Successor.CreatedAt, "replacedBy": res.Successor.ID},
		},
		subjectUserID: res.UserID,
	})

	return &TokenPair{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, res flows.RefreshResult) error {
	e.metricInc(MetricRefreshFailure)

	var err error
	reason := ""
	switch res.Failure {
	case flows.RefreshFailureDecode:
		return ErrMalformedToken
	case flows.RefreshFailureLockConflict:
		e.metricInc(MetricRefreshLockConflict)
		return ErrLockConflict
	case flows.RefreshFailureLockUnavailable:
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
	case flows.RefreshFailureNotFound:
		err, reason = ErrTokenNotFound, "Refresh token not found"
	case flows.RefreshFailureStore:
		err, reason = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err), "Identity store unavailable"
	case flows.RefreshFailureReuse:
		err, reason = ErrTheftDetected, "Detected reuse of refresh token"
	case flows.RefreshFailureSecretMismatch:
		err, reason = ErrTheftDetected, "Refresh token secret mismatch"
	case flows.RefreshFailureExpired:
		err, reason = ErrTokenExpired, "Refresh token expired"
	case flows.RefreshFailureStale:
		err, reason = ErrTokenRevoked, "Refresh token already rotated"
	case flows.RefreshFailureUserNotFound:
		err, reason = ErrUserNotFound, "User no longer exists"
	default:
		err, reason = fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err), "Session issuance failed"
	}

	changes := map[string]any{"event": "refresh"}
	if res.Failure.Theft() {
		e.metricInc(MetricRefreshTheftDetected)
		e.metrics.Add(MetricRefreshFleetRevoked, uint64(res.FleetRevoked))
		changes["severity"] = "high"
		changes["revokedTokens"] = res.FleetRevoked
		e.logger.Warn("goIdentity: refresh token theft detected",
			zap.String("user_id", res.UserID),
			zap.String("row_id", res.RowID),
			zap.Int64("revoked", res.FleetRevoked),
			zap.Error(res.Err))
	}

	e.emitAudit(ctx, auditRecord{
		action:        store.ActionUpdate,
		entityType:    auditEntityRefreshToken,
		entityID:      res.RowID,
		status:        store.StatusFailed,
		reason:        reason,
		changes:       changes,
		subjectUserID: res.UserID,
	})
	return err
}

// ValidateAccess verifies an access token and rejects denylisted ids. A
// denylist outage fails the check.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flow.Validate(ctx, tokenStr)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureDenylisted:
		e.metricInc(MetricDenylistRejected)
		return nil, ErrTokenRevoked
	case flows.ValidateFailureDenylistUnavailable:
		return nil, fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
	default:
		if errors.Is(res.Err, gjwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, res.Err)
	}

	return &AuthResult{
		UserID:      res.Claims.Subject,
		TokenID:     res.Claims.ID,
		Roles:       res.Claims.Roles,
		Permissions: permission.FromStrings(res.Claims.Permissions),
		ExpiresAt:   res.Claims.ExpiresAt.Time,
	}, nil
}

// Logout validates accessToken, revokes the presented refresh row (not the
// rest of the fleet) and denylists the access token until its expiry.
// Both steps are attempted; the first failure is returned.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	auth, err := e.ValidateAccess(ctx, accessToken)
	if err != nil {
		return err
	}
	return e.LogoutAuthenticated(ctx, auth, refreshToken)
}

// LogoutAuthenticated is [Engine.Logout] for callers that already validated
// the access token.
func (e *Engine) LogoutAuthenticated(ctx context.Context, auth *AuthResult, refreshToken string) error {
	if !e.flow.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flow.Logout(ctx, flows.LogoutInput{
		UserID:       auth.UserID,
		RefreshToken: refreshToken,
		JTI:          auth.TokenID,
		ExpiresAt:    auth.ExpiresAt,
	})
	if res.Denylisted {
		e.metricInc(MetricDenylistAdded)
	}
	e.metricInc(MetricLogout)

	rec := auditRecord{
		action:     store.ActionUpdate,
		entityType: auditEntityRefreshToken,
		entityID:   res.RowID,
		status:     store.StatusSuccess,
		changes:    map[string]any{"event": "logout", "revoked": res.Revoked, "accessTokenDenylisted": res.Denylisted},
	}
	if res.Err != nil {
		rec.status = store.StatusFailed
		rec.reason = res.Err.Error()
	}
	e.emitAudit(WithActor(ctx, e.actorForAuth(ctx, auth)), rec)

	if res.Err != nil {
		return logoutError(res, auth)
	}
	return nil
}

func logoutError(res flows.LogoutResult, auth *AuthResult) error {
	switch {
	case !res.Denylisted && auth.TokenID != "":
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
	case errors.Is(res.Err, internal.ErrMalformedRefresh):
		return ErrMalformedToken
	case errors.Is(res.Err, flows.ErrForeignRefreshToken):
		return ErrTokenInvalid
	case errors.Is(res.Err, store.ErrNotFound):
		return ErrTokenNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	}
}

// PermissionsForUser returns the user's flattened permission set through
// the cache.
func (e *Engine) PermissionsForUser(ctx context.Context, userID string) (permission.Set, error) {
	perms, err := e.resolver.PermissionsForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return perms, nil
}

// HasPermission resolves userID's permissions and checks (action, subject).
func (e *Engine) HasPermission(ctx context.Context, userID string, action permission.Action, subject string) (bool, error) {
	perms, err := e.PermissionsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Can(action, subject), nil
}

// ClearPermissionCache drops the cached permission set of userID.
func (e *Engine) ClearPermissionCache(ctx context.Context, userID string) {
	e.resolver.ClearCacheForUser(ctx, userID)
}

// actorForAuth prefers the actor already on ctx (set by the guard) and
// otherwise builds one from the token.
func (e *Engine) actorForAuth(ctx context.Context, auth *AuthResult) Actor {
	if actor := ActorFromContext(ctx); actor.ID == auth.UserID {
		return actor
	}
	return auth.Actor()
}

func actorFromUser(u *store.User) Actor {
	return Actor{
		ID:          u.ID,
		Email:       u.Email,
		Roles:       u.RoleNames(),
		Permissions: permission.Flatten(u.Roles),
	}
}
