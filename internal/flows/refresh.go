package flows

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

// RefreshFailureKind classifies refresh exchange failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoDevice
	RefreshFailureNoCredential
	RefreshFailureRejected
	RefreshFailureNetwork
	RefreshFailureMissingUser
)

// RefreshResult carries the refreshed user or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	User    *session.UserProfile
	Status  int
}

// RefreshDeps captures refresh exchange dependencies.
type RefreshDeps struct {
	Sender Sender
	// DeviceID returns the stored id without generating one.
	DeviceID     func(context.Context) (string, bool)
	Platform     string
	RefreshToken func(context.Context) string
	// HasCookieCredential reports whether the cookie channel can carry the
	// refresh token when the store holds none.
	HasCookieCredential func() bool
	SaveUser            UserSink
}

type refreshBody struct {
	DeviceID     string `json:"deviceId"`
	Platform     string `json:"platform"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RunRefreshExchange performs one refresh-token exchange. It never touches
// the refresh guard; callers own acquisition and release.
func RunRefreshExchange(ctx context.Context, deps RefreshDeps) RefreshResult {
	deviceID, ok := deps.DeviceID(ctx)
	if !ok || deviceID == "" {
		return RefreshResult{Failure: RefreshFailureNoDevice, Err: errors.New("no device id stored")}
	}

	token := deps.RefreshToken(ctx)
	if token == "" && (deps.HasCookieCredential == nil || !deps.HasCookieCredential()) {
		return RefreshResult{Failure: RefreshFailureNoCredential, Err: errors.New("no refresh credential stored")}
	}

	resp, err := deps.Sender.Do(ctx, &transport.Request{
		Method:      http.MethodPost,
		Path:        PathRefresh,
		Body:        refreshBody{DeviceID: deviceID, Platform: deps.Platform, RefreshToken: token},
		SkipRefresh: true,
	})
	if err != nil {
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			return RefreshResult{Failure: RefreshFailureRejected, Err: err, Status: httpErr.StatusCode}
		}
		return RefreshResult{Failure: RefreshFailureNetwork, Err: err}
	}

	raw, _ := resp.DataField("user")
	user, err := session.DecodeUserPayload(raw)
	if err != nil || user == nil {
		return RefreshResult{Failure: RefreshFailureMissingUser, Err: errors.New("refresh response carried no user"), Status: resp.StatusCode}
	}

	deps.SaveUser(ctx, user)
	return RefreshResult{User: user, Status: resp.StatusCode}
}
