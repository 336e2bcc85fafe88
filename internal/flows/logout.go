package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/portalAuth/transport"
)

// LogoutResult reports the remote outcome. Local clearing always happens.
type LogoutResult struct {
	RemoteErr error
	// RemoteSkipped is set when no device id was stored and the server
	// call was not attempted.
	RemoteSkipped bool
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Sender     Sender
	DeviceID   func(context.Context) (string, bool)
	Platform   string
	ClearLocal func(context.Context)
	// ClearSession clears everything ClearLocal does except the device
	// identity. Forced logouts use it when set.
	ClearSession func(context.Context)
}

type logoutBody struct {
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
}

// RunLogout notifies the server best-effort, then clears local state
// unconditionally.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	deviceID, ok := deps.DeviceID(ctx)
	if ok && deviceID != "" {
		_, res.RemoteErr = deps.Sender.Do(ctx, &transport.Request{
			Method:      http.MethodPost,
			Path:        PathLogout,
			Body:        logoutBody{DeviceID: deviceID, Platform: deps.Platform},
			SkipRefresh: true,
		})
	} else {
		res.RemoteSkipped = true
	}

	deps.ClearLocal(ctx)
	return res
}

// RunForcedLogout is RunLogout for a session the server has already ended.
// The device identity outlives it.
func RunForcedLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	if deps.ClearSession != nil {
		deps.ClearLocal = deps.ClearSession
	}
	return RunLogout(ctx, deps)
}
