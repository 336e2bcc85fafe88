// Package cookiejar mirrors server Set-Cookie headers and reconstructs the
// outgoing Cookie header. It is a flat name=value jar scoped to a single
// backend origin; domain and path matching are not needed for that use.
package cookiejar
