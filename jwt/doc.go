// Package jwt inspects portal access tokens on the client and issues signed
// access/refresh pairs for in-process test backends.
//
// [Inspect] reads claims without verifying the signature; the client holds no
// verification key and only uses it to schedule proactive refreshes. Never
// make an authorization decision from an inspected token.
package jwt
