// Package session defines the client-side session model: the cached user
// profile, the session snapshot exposed to the UI, and the versioned codec
// used to persist the user snapshot.
//
// # Snapshot codec
//
// The cached user is stored as a JSON envelope {"v":1,"user":{...}}. Decode
// also accepts a bare user object (schema version 0, the server payload as
// received) and rejects future versions so an old binary never misreads a
// newer snapshot.
//
// # Architecture boundaries
//
// This package owns data shapes and their encoding. It does NOT persist
// anything, perform HTTP calls, or decide state transitions; those belong to
// tokenstore, transport and the Engine.
//
// # What this package must NOT do
//
//   - Import portalAuth, transport or tokenstore (no upward imports).
//   - Store credentials in [UserProfile] or [Snapshot].
package session
