// Package permission provides the (action, subject) permission model, role
// composition, and the cached per-user permission resolver used by
// goIdentity authorization checks.
//
// # Semantics
//
// MANAGE on a subject implies every action on that subject. The subject
// "all" applies an action to every subject, so MANAGE:all grants everything.
// Permissions travel on the wire as "ACTION:subject".
//
// # Architecture boundaries
//
// The [Resolver] reads roles through a [Source] and caches flattened sets in an
// optional [Cache]. Cache failures degrade to direct reads and never surface
// to callers.
//
// # What this package must NOT do
//
//   - Import goIdentity, jwt, or session.
//   - Treat a cache error as an authorization failure.
package permission
