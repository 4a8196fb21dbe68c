// Package goIdentity is the session core of an identity provider: password
// login behind a per-email lockout, asymmetric JWT access tokens carrying
// flattened permissions, rotating opaque refresh tokens with theft
// detection, access token revocation and role-based permissions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config] and value
// types. Flow orchestration, rate limiting and audit dispatch live under internal/ and
// are never exported. Persistence goes through store.Store; coordination state (refresh
// locks, the jti denylist, lockout counters, the permission cache) lives in Redis.
//
// # Failure semantics
//
// Coordination outages fail closed with [ErrCoordinatorUnavailable], except the
// permission cache, which falls back to the store. Every authentication failure maps to
// [ErrUnauthorized] through [PublicError]; [ErrLockConflict] is the one failure a client
// is told about, because it should retry.
package goIdentity
