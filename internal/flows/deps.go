package flows

import (
	"context"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// session methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
	Profile ProfileDeps
	Startup StartupDeps
}

// Sender issues a request through the authenticated pipeline.
// *transport.Client satisfies it.
type Sender interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// UserSink persists a user snapshot. Failures are the sink's concern.
type UserSink func(ctx context.Context, u *session.UserProfile)

// Endpoint paths, relative to the configured base URL.
const (
	PathLogin   = "/users/login"
	PathRefresh = "/users/refresh-token"
	PathMe      = "/users/me"
	PathLogout  = "/users/logout"
)
