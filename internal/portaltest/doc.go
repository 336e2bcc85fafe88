// Package portaltest runs an in-process fake of the portal backend's user
// endpoints. It issues real signed tokens, rotates refresh tokens, counts
// every call and can be told to expire tokens or fail endpoints, so SDK tests
// and the stress tool can assert exact network behavior.
package portaltest
