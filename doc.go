// Package portalAuth is the client-side session layer for the college portal
// API: login, token refresh, logout, cold-start restore and the
// authenticated HTTP client every domain call goes through.
//
// Build one [Engine] with [Builder.Build], call [Engine.Start] once, then
// issue requests through [Engine.Client]. A 401 on any request triggers at
// most one refresh per Refresh.MinInterval and one replay of the failed
// request; a failed refresh ends the session.
//
// # Architecture boundaries
//
// portalAuth is the composition root. It owns the token store, cookie jar,
// refresh guard, event bus and query cache, and hands them to the transport
// and flow packages by reference. There are no package-level singletons.
//
// # What this package must NOT do
//
//   - Log token values. Only presence flags are logged.
//   - Surface storage failures to callers. The in-process mirror is
//     authoritative when the backend fails.
//   - Start a second refresh while one is in flight.
package portalAuth
