// Package session owns the refresh token row model and the Redis-backed
// coordination store that serializes rotation and holds the access token
// denylist.
//
// # Architecture boundaries
//
// The [Store] here is a hard dependency: every method fails closed with
// [ErrRedisUnavailable] when Redis cannot be reached. Persistence of
// [RefreshToken] rows belongs to the relational store, not to this package.
//
// # What this package must NOT do
//
//   - Import goIdentity, jwt, or permission (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext refresh secrets.
package session
