// Package limiters provides domain-specific throttles built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [LockoutLimiter] — per-email failed login lockout (5 per hour by default).
//   - [PasswordResetLimiter] — per-email + per-IP throttle for forgot-password.
//   - [AccountCreationLimiter] — per-email + per-IP throttle for registration.
//
// The request throttles are nil-safe: calling them on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
