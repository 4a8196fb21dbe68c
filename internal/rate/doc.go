// Package rate provides the counting primitives behind goIdentity's
// throttles: a Redis fixed-window [Window] shared across processes, and a
// per-process token bucket [IPLimiter] for HTTP entry points.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Callers own their key prefixes.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goIdentity module.
package rate
