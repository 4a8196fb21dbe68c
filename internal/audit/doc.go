// Package audit delivers activity log entries to sinks for security-relevant
// operations.
//
// # Components
//
//   - [Sink] — interface for entry consumers (store, channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full
//     semantics, or synchronous relay. An optional enrich hook completes
//     entries just before the sink.
//   - [Entry] — the persisted activity log record.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// entries to emit; that belongs to the Engine. Sink failures are reported to
// the error hook and never reach the caller of Emit.
//
// # What this package must NOT do
//
//   - Filter or suppress entries based on business logic.
//   - Import goIdentity or any sibling internal package.
//   - Propagate sink errors to the audited operation.
package audit
