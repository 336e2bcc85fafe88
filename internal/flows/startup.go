package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

// StartupOutcome is the verdict of a cold start.
type StartupOutcome int

const (
	// StartupNoSession means no cached user was found.
	StartupNoSession StartupOutcome = iota
	// StartupVerified means the server confirmed the session.
	StartupVerified
	// StartupOffline means verification failed for non-auth reasons and
	// the cached user was kept.
	StartupOffline
	// StartupRejected means the server refused the session or answered
	// without a user.
	StartupRejected
)

func (o StartupOutcome) String() string {
	switch o {
	case StartupNoSession:
		return "no_session"
	case StartupVerified:
		return "verified"
	case StartupOffline:
		return "offline"
	case StartupRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// StartupResult carries the user to expose after start-up.
type StartupResult struct {
	Outcome StartupOutcome
	User    *session.UserProfile
	Err     error
}

// StartupDeps captures start-up flow dependencies.
type StartupDeps struct {
	LoadUser func(context.Context) *session.UserProfile
	Profile  ProfileDeps
	// IsAuthFailure reports whether err means the session is gone, as
	// opposed to the server being unreachable.
	IsAuthFailure func(error) bool
}

// RunStartup restores the cached user and verifies it against the server.
func RunStartup(ctx context.Context, deps StartupDeps) StartupResult {
	cached := deps.LoadUser(ctx)
	if cached == nil {
		return StartupResult{Outcome: StartupNoSession}
	}

	res := RunFetchProfile(ctx, deps.Profile)
	switch {
	case res.Err == nil:
		return StartupResult{Outcome: StartupVerified, User: res.User}
	case errors.Is(res.Err, ErrNoUserInResponse):
		return StartupResult{Outcome: StartupRejected, Err: res.Err}
	case isAuthFailure(res.Err, deps.IsAuthFailure):
		return StartupResult{Outcome: StartupRejected, Err: res.Err}
	default:
		return StartupResult{Outcome: StartupOffline, User: cached, Err: res.Err}
	}
}

func isAuthFailure(err error, extra func(error) bool) bool {
	if transport.IsAuthStatus(err) {
		return true
	}
	return extra != nil && extra(err)
}
