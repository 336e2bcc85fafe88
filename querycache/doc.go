// Package querycache is the query cache that sits beside the authenticated
// transport: it caches fetched values with a stale time, deduplicates
// concurrent fetches of the same key, tracks in-flight requests to drive the
// loading channel, and invalidates entries when a global refresh is requested.
//
// Keys are slash separated paths ("user", "notes/42"). Invalidating a key
// also invalidates every key below it.
package querycache
