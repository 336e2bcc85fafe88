package flows

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureNoDevice
	LoginFailureRejected
	LoginFailureNetwork
	LoginFailureMalformed
)

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string
	Password string
}

// LoginResult carries the authenticated user or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    *session.UserProfile
	// Title and Message are the server-supplied rejection texts.
	Title   string
	Message string
	Status  int
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Sender   Sender
	DeviceID func(context.Context) (string, error)
	Platform string
	SaveUser UserSink
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
}

// RunLogin posts credentials and persists the returned user. Tokens in the
// response are persisted by the transport response stage.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput, Err: errors.New("email and password are required")}
	}

	deviceID, err := deps.DeviceID(ctx)
	if err != nil || deviceID == "" {
		return LoginResult{Failure: LoginFailureNoDevice, Err: err}
	}

	resp, err := deps.Sender.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body: loginBody{
			Email:    email,
			Password: req.Password,
			DeviceID: deviceID,
			Platform: deps.Platform,
		},
		SkipRefresh: true,
	})
	if err != nil {
		return classifyLoginError(err)
	}

	raw, _ := resp.DataField("user")
	user, err := session.DecodeUserPayload(raw)
	if err != nil || user == nil {
		return LoginResult{Failure: LoginFailureMalformed, Err: errors.New("login response carried no user")}
	}

	deps.SaveUser(ctx, user)
	return LoginResult{User: user}
}

func classifyLoginError(err error) LoginResult {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return LoginResult{
			Failure: LoginFailureRejected,
			Err:     err,
			Title:   httpErr.Title,
			Message: httpErr.Message,
			Status:  httpErr.StatusCode,
		}
	}
	return LoginResult{Failure: LoginFailureNetwork, Err: err}
}
