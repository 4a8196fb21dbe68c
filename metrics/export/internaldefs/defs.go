package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful login attempts."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed login attempts, including locked ones."},
	{ID: goIdentity.MetricLoginLocked, Name: "goidentity_login_locked_total", Help: "Login attempts rejected by the lockout counter."},
	{ID: goIdentity.MetricLockoutTriggered, Name: "goidentity_lockout_triggered_total", Help: "Failures that pushed an email over the lockout threshold."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: goIdentity.MetricRefreshLockConflict, Name: "goidentity_refresh_lock_conflict_total", Help: "Refresh attempts that lost the per-token lock."},
	{ID: goIdentity.MetricRefreshTheftDetected, Name: "goidentity_refresh_theft_detected_total", Help: "Refresh token reuse or secret mismatch detections."},
	{ID: goIdentity.MetricRefreshFleetRevoked, Name: "goidentity_refresh_fleet_revoked_total", Help: "Refresh tokens revoked in response to theft."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Completed logouts."},
	{ID: goIdentity.MetricDenylistAdded, Name: "goidentity_denylist_added_total", Help: "Access token ids written to the denylist."},
	{ID: goIdentity.MetricDenylistRejected, Name: "goidentity_denylist_rejected_total", Help: "Access tokens rejected because their id is denylisted."},
	{ID: goIdentity.MetricPermissionCacheHit, Name: "goidentity_permission_cache_hit_total", Help: "Permission lookups served from cache."},
	{ID: goIdentity.MetricPermissionCacheMiss, Name: "goidentity_permission_cache_miss_total", Help: "Permission lookups that went to the store."},
	{ID: goIdentity.MetricPermissionCacheError, Name: "goidentity_permission_cache_error_total", Help: "Permission cache read or write errors."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset requests."},
	{ID: goIdentity.MetricPasswordResetConfirmSuccess, Name: "goidentity_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: goIdentity.MetricPasswordResetConfirmFailure, Name: "goidentity_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: goIdentity.MetricAccountCreationSuccess, Name: "goidentity_account_creation_success_total", Help: "Registered accounts."},
	{ID: goIdentity.MetricAccountCreationDuplicate, Name: "goidentity_account_creation_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: goIdentity.MetricRateLimitHit, Name: "goidentity_rate_limit_hit_total", Help: "Requests denied by a rate limiter."},
	{ID: goIdentity.MetricRoleChange, Name: "goidentity_role_change_total", Help: "Role assignments changed."},
	{ID: goIdentity.MetricAccountDeleted, Name: "goidentity_account_deleted_total", Help: "Deleted accounts."},
	{ID: goIdentity.MetricAuditFailure, Name: "goidentity_audit_failure_total", Help: "Activity log writes that failed."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: goIdentity.MetricRefreshLatency, Name: "goidentity_refresh_latency_seconds", Help: "Refresh token rotation latency."},
}

// AuditDroppedName is the counter for audit entries dropped under backpressure.
const AuditDroppedName = "goidentity_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Activity log entries dropped by the async dispatcher."

// HistogramUpperBounds are the bucket bounds in seconds, +Inf excluded.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
