// Package audit relays session audit events to a sink without blocking the
// caller.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     delivery.
//   - [Event]: one login/refresh/logout/start-up outcome.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. Which events exist, and when
// they fire, is decided by the engine.
//
// # What this package must NOT do
//
//   - Import portalAuth or any sibling internal package.
//   - Carry credentials in events.
package audit
