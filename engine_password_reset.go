package goIdentity

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/store"
	"go.uber.org/zap"
)

// ForgotPassword issues a single-use reset token for email and hands it to
// the configured [Mailer].
//
// The result does not reveal whether the account exists: unknown emails and
// delivery failures both return nil. Only throttling and backend outages
// surface as errors.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrFeatureDisabled
	}

	e.metricInc(MetricPasswordResetRequest)
	res := e.flow.ForgotPassword(ctx, email, clientIPFromContext(ctx))

	rec := auditRecord{
		action:        store.ActionExecute,
		entityType:    auditEntityPassword,
		entityID:      res.JTI,
		status:        store.StatusSuccess,
		changes:       map[string]any{"event": "forgot_password", "email": res.Email},
		subjectUserID: res.UserID,
	}

	var err error
	switch res.Failure {
	case flows.ForgotFailureNone:
	case flows.ForgotFailureRateLimited:
		e.metricInc(MetricRateLimitHit)
		err = ErrRateLimited
		rec.status, rec.reason = store.StatusFailed, "Rate limited"
	case flows.ForgotFailureThrottleUnavailable:
		err = fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
		rec.status, rec.reason = store.StatusFailed, "Throttle backend unavailable"
	case flows.ForgotFailureUnknownUser:
		rec.status, rec.reason = store.StatusFailed, "Unknown email"
	case flows.ForgotFailureStore:
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		rec.status, rec.reason = store.StatusFailed, "Identity store unavailable"
	case flows.ForgotFailureDelivery:
		e.logger.Error("goIdentity: password reset delivery failed", zap.String("user_id", res.UserID), zap.Error(res.Err))
		rec.status, rec.reason = store.StatusFailed, "Delivery failed"
	default:
		err = fmt.Errorf("%w: %v", ErrSessionCreationFailed, res.Err)
		rec.status, rec.reason = store.StatusFailed, "Reset token issuance failed"
	}

	e.emitAudit(ctx, rec)
	return err
}

// ResetPassword consumes a reset token and sets a new password. The token's
// jti is claimed atomically before the password is hashed, so a token can
// succeed at most once even under concurrent presentation. With PasswordReset.RevokeSessions every refresh token of the
// user is revoked afterwards.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrFeatureDisabled
	}

	res := e.flow.ResetPassword(ctx, token, newPassword)

	rec := auditRecord{
		action:        store.ActionUpdate,
		entityType:    auditEntityUser,
		entityID:      res.UserID,
		status:        store.StatusSuccess,
		changes:       map[string]any{"event": "reset_password", "fields": []string{"password"}, "sessionsRevoked": res.SessionsRevoked},
		subjectUserID: res.UserID,
	}

	var err error
	switch res.Failure {
	case flows.ResetFailureNone:
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.metricInc(MetricDenylistAdded)
	case flows.ResetFailureInvalidToken:
		err = ErrResetTokenInvalid
		rec.reason = "Invalid reset token"
	case flows.ResetFailureReplayed:
		e.metricInc(MetricDenylistRejected)
		err = ErrResetTokenInvalid
		rec.reason = "Reset token already used"
	case flows.ResetFailureDenylistUnavailable:
		err = fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, res.Err)
		rec.reason = "Denylist unavailable"
	case flows.ResetFailurePolicy:
		err = res.Err
		rec.reason = "Password policy"
	case flows.ResetFailureUserNotFound:
		err = ErrResetTokenInvalid
		rec.reason = "User no longer exists"
	default:
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		rec.reason = "Password update failed"
	}

	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		rec.status = store.StatusFailed
	}
	e.emitAudit(ctx, rec)
	return err
}

func (e *Engine) deliverReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	return e.mailer.SendPasswordReset(ctx, email, token, expiresAt)
}
