// Package store defines the persistence contracts of goIdentity: users with
// their roles, append-only refresh token rows, and the activity log.
//
// Implementations live in sub-packages: [postgres] for production and
// [memory] for tests and single-process demos. Both honour the same
// conditional-update semantics for refresh rotation, so a rotation that
// loses a race fails with [ErrAlreadyRevoked] instead of forking a chain.
package store
