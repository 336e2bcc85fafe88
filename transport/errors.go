package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork classifies timeouts and connectivity failures.
var ErrNetwork = errors.New("transport: network failure")

// NetworkError reports a request that never produced an HTTP response.
type NetworkError struct {
	Method  string
	Path    string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport: %s %s: timed out: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// HTTPError is any non-2xx response. Title and Message come from the server
// error envelope {"error": title, "message": message} when present.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Title      string
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("transport: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsUnauthorized reports whether err is a 401 HTTPError.
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

// IsAuthStatus reports whether err is a 401 or 403 HTTPError.
func IsAuthStatus(err error) bool {
	s := StatusCode(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsServerError reports whether err is a 5xx HTTPError.
func IsServerError(err error) bool { return StatusCode(err) >= 500 }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
