// Package middleware exposes net/http adapters over goIdentity.Engine.
//
// # Handlers
//
//   - [RequestContext] records client IP and User-Agent for auditing.
//   - [Guard] validates the bearer access token (signature, expiry, denylist).
//   - [RequirePermission] enforces one (action, subject) pair after Guard.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; every decision is delegated to Engine.ValidateAccess.
// A denylist outage is reported as 503, every other failure as 401.
package middleware
