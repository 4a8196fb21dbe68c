// Package internal contains helper utilities that are private to goIdentity:
// refresh token encoding, secure random generation and device labelling.
//
// # Sub-packages
//
//   - audit — activity log dispatch (Dispatcher + Sink implementations)
//   - flows — flow orchestrators for every Engine operation
//   - limiters — Redis-backed login lockout and reset throttling
//   - rate — fixed-window Redis counters and per-IP HTTP limiting
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
