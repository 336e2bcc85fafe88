// Package refresh implements the refresh guard: the single point of
// serialization deciding whether a token-refresh exchange may start.
//
// # Semantics
//
// [Guard.TryAcquire] succeeds only when no refresh is in flight and the last
// refresh finished at least minInterval ago. [Guard.Release] ends the in-flight
// window and records its completion time; LastRefreshAt never moves backwards.
// State is in-memory only and resets with the process.
//
// # Architecture boundaries
//
// This package owns the acquire/release state machine. Performing the refresh
// exchange, replaying requests, and logging out on failure belong to the
// transport coordinator and the Engine.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import portalAuth, transport, or tokenstore.
//   - Hide state in package-level variables: every Guard is explicitly owned.
package refresh
