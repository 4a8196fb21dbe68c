package goIdentity

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
)

// User is a stored account with its roles loaded.
type User = store.User

// ActivityLog is one immutable audit entry.
//
//	Docs: docs/audit.md
type ActivityLog = store.ActivityLog

// PageMeta describes a page of a listing.
type PageMeta = store.PageMeta

// LoginResult is returned by [Engine.Login]. The refresh token must only
// travel in the httpOnly cookie.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
	Permissions  permission.Set
}

// TokenPair is returned by [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by [Engine.ValidateAccess].
type AuthResult struct {
	UserID      string
	TokenID     string
	Roles       []string
	Permissions permission.Set
	ExpiresAt   time.Time
}

// Actor converts a validated token into the request actor. Email is not part
// of the token; the guard fills it in when it needs it.
func (r *AuthResult) Actor() Actor {
	return Actor{
		ID:          r.UserID,
		Roles:       r.Roles,
		Permissions: r.Permissions,
		TokenID:     r.TokenID,
	}
}

// ActivityLogPage is one page of [Engine.ListActivityLogs].
type ActivityLogPage struct {
	Data []ActivityLog `json:"data"`
	Meta PageMeta      `json:"meta"`
}

// SelfUpdate names the fields a user may change on their own account.
type SelfUpdate struct {
	Name     *string
	Password *string
}

// Mailer delivers password reset tokens. Delivery is out of band; the
// engine only needs to know whether the hand-off succeeded.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// AuditSink receives [ActivityLog] values from the engine's audit dispatcher.
//
//	Docs: docs/audit.md
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all entries.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON entry per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// StoreSink persists entries through a store.ActivityLogStore.
type StoreSink = internalaudit.StoreSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewStoreSink creates a [StoreSink] writing into s.
func NewStoreSink(s store.ActivityLogStore) *StoreSink {
	return internalaudit.NewStoreSink(s)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
//
//	Docs: docs/metrics.md
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess                = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure                = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginLocked                 = MetricID(internalmetrics.MetricLoginLocked)
	MetricLockoutTriggered            = MetricID(internalmetrics.MetricLockoutTriggered)
	MetricRefreshSuccess              = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure              = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshLockConflict         = MetricID(internalmetrics.MetricRefreshLockConflict)
	MetricRefreshTheftDetected        = MetricID(internalmetrics.MetricRefreshTheftDetected)
	MetricRefreshFleetRevoked         = MetricID(internalmetrics.MetricRefreshFleetRevoked)
	MetricLogout                      = MetricID(internalmetrics.MetricLogout)
	MetricDenylistAdded               = MetricID(internalmetrics.MetricDenylistAdded)
	MetricDenylistRejected            = MetricID(internalmetrics.MetricDenylistRejected)
	MetricPermissionCacheHit          = MetricID(internalmetrics.MetricPermissionCacheHit)
	MetricPermissionCacheMiss         = MetricID(internalmetrics.MetricPermissionCacheMiss)
	MetricPermissionCacheError        = MetricID(internalmetrics.MetricPermissionCacheError)
	MetricPasswordResetRequest        = MetricID(internalmetrics.MetricPasswordResetRequest)
	MetricPasswordResetConfirmSuccess = MetricID(internalmetrics.MetricPasswordResetConfirmSuccess)
	MetricPasswordResetConfirmFailure = MetricID(internalmetrics.MetricPasswordResetConfirmFailure)
	MetricAccountCreationSuccess      = MetricID(internalmetrics.MetricAccountCreationSuccess)
	MetricAccountCreationDuplicate    = MetricID(internalmetrics.MetricAccountCreationDuplicate)
	MetricRateLimitHit                = MetricID(internalmetrics.MetricRateLimitHit)
	MetricRoleChange                  = MetricID(internalmetrics.MetricRoleChange)
	MetricAccountDeleted              = MetricID(internalmetrics.MetricAccountDeleted)
	MetricAuditFailure                = MetricID(internalmetrics.MetricAuditFailure)
	MetricValidateLatency             = MetricID(internalmetrics.MetricValidateLatency)
	MetricRefreshLatency              = MetricID(internalmetrics.MetricRefreshLatency)

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and optional latency histograms.
//
//	Docs: docs/metrics.md
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// IsLatencyMetric reports whether id is exported as a histogram.
func IsLatencyMetric(id MetricID) bool {
	return internalmetrics.IsLatency(id)
}

// MetricCount is the number of defined metric ids.
const MetricCount = int(metricIDCount)
