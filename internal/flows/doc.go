// Package flows contains the orchestrators behind every Engine session operation.
//
// Each flow function (RunLogin, RunRefreshExchange, RunLogout, RunStartup,
// RunFetchProfile) accepts a typed dependency struct and returns a result
// value carrying a failure kind. The Engine maps failure kinds to public
// errors, metrics, audit events and state transitions.
//
// # Architecture boundaries
//
// Flows talk to the server through a Sender (the authenticated transport
// client) and hand results back through callbacks. They do NOT own the token
// store, the refresh guard or the session state.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import portalAuth (to avoid import cycles).
//   - Acquire or release the refresh guard.
package flows
