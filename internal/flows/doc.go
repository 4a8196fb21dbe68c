// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRefresh, etc.) accepts a typed
// dependency struct and returns a result carrying a failure kind. The root
// package maps failure kinds onto public sentinels, audit entries and metrics.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the refresh coordinator, relational
// store, JWT manager and limiters. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency fields.
package flows
