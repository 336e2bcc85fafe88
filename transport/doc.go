// Package transport is the authenticated HTTP client of the portal SDK.
//
// Every request passes two stages. The request stage runs at send time (never
// when the Request value is built): it reads the current token store and
// cookie jar and attaches the enabled credential channels, the device id
// header and a per-attempt X-Request-ID. The response stage mirrors
// Set-Cookie into the jar and persists any tokens carried in the response
// envelope's data object.
//
// A 401 on a request that did not opt out via Request.SkipRefresh is handed to
// the [Coordinator], which performs at most one refresh per guard window and
// replays the request once.
//
// # Architecture boundaries
//
// transport knows nothing about users or session state. Refreshing and forced
// logout are delegated to a [Refresher] supplied by the engine.
package transport
