package portalAuth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/portalAuth/tokenstore"
	"github.com/MrEthical07/portalAuth/transport"
)

var (
	// ErrAuth marks a login or refresh the server rejected.
	ErrAuth = errors.New("authentication rejected")
	// ErrRefreshThrottled is reported when the refresh guard declines an
	// attempt. RefreshToken absorbs it; it is never shown to users.
	ErrRefreshThrottled = errors.New("refresh throttled")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned by a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNoDeviceID means no device id could be stored or generated.
	ErrNoDeviceID = errors.New("device id unavailable")
	// ErrInvalidCredentials is returned when email or password is empty.
	ErrInvalidCredentials = errors.New("email and password are required")
	// ErrMalformedResponse means a 2xx response lacked the expected user.
	ErrMalformedResponse = errors.New("malformed server response")

	// ErrNetwork is the transport timeout/connectivity sentinel.
	ErrNetwork = transport.ErrNetwork
	// ErrStorage is the token store persistence sentinel. Store operations
	// log it and never return it.
	ErrStorage = tokenstore.ErrStorage
)

// AuthError is a server-rejected login or refresh. Title and Message are the
// server's texts and are safe to show to users.
type AuthError struct {
	Title   string
	Message string
	Status  int
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Title != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Message)
	case e.Message != "":
		return e.Message
	case e.Title != "":
		return e.Title
	default:
		return ErrAuth.Error()
	}
}

// Unwrap exposes both ErrAuth and the underlying transport error.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuth}
	}
	return []error{ErrAuth, e.Err}
}

// IsAuthFailure reports whether err means the session is no longer valid:
// a rejected login/refresh or a 401/403 response.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuth) || transport.IsAuthStatus(err)
}
