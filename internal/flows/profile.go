package flows

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

// ErrNoUserInResponse is returned when /users/me answered without a user.
var ErrNoUserInResponse = errors.New("profile response carried no user")

// ProfileResult carries the fetched user. User is nil when Err is set.
type ProfileResult struct {
	User *session.UserProfile
	Err  error
}

// ProfileDeps captures profile fetch dependencies.
type ProfileDeps struct {
	Sender   Sender
	SaveUser UserSink
}

// RunFetchProfile reads the current user through the authenticated
// pipeline, so an expired access token goes through refresh and replay.
func RunFetchProfile(ctx context.Context, deps ProfileDeps) ProfileResult {
	resp, err := deps.Sender.Do(ctx, &transport.Request{Method: http.MethodGet, Path: PathMe})
	if err != nil {
		return ProfileResult{Err: err}
	}

	user, err := decodeProfileData(resp)
	if err != nil {
		return ProfileResult{Err: err}
	}
	if user == nil {
		return ProfileResult{Err: ErrNoUserInResponse}
	}
	if deps.SaveUser != nil {
		deps.SaveUser(ctx, user)
	}
	return ProfileResult{User: user}
}

// decodeProfileData accepts both {"data":{...user}} and {"data":{"user":{...}}}.
func decodeProfileData(resp *transport.Response) (*session.UserProfile, error) {
	if raw, ok := resp.DataField("user"); ok {
		return session.DecodeUserPayload(raw)
	}
	if !resp.Envelope.HasData() {
		return nil, nil
	}
	return session.DecodeUserPayload(resp.Envelope.Data)
}
