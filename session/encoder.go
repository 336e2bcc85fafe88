package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// CurrentSchemaVersion is the envelope version written by EncodeUser.
	CurrentSchemaVersion = 1
	schemaVersionLegacy  = 0
)

var (
	// ErrEmptySnapshot is returned when decoding zero bytes.
	ErrEmptySnapshot = errors.New("session: empty user snapshot")
	// ErrUnsupportedVersion is returned for envelopes newer than this build.
	ErrUnsupportedVersion = errors.New("session: unsupported snapshot version")
	// ErrMalformedSnapshot is returned for undecodable input.
	ErrMalformedSnapshot = errors.New("session: malformed user snapshot")
)

type envelope struct {
	Version int             `json:"v"`
	User    json.RawMessage `json:"user"`
}

// EncodeUser serializes u into the current envelope format.
func EncodeUser(u *UserProfile) ([]byte, error) {
	if u == nil {
		return nil, errors.New("session: nil user")
	}
	body, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("session: encode user: %w", err)
	}
	return json.Marshal(envelope{Version: CurrentSchemaVersion, User: body})
}

// DecodeUser parses a persisted user snapshot. It returns the schema version
// the data was written with.
func DecodeUser(data []byte) (*UserProfile, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, ErrEmptySnapshot
	}
	if data[0] != '{' {
		return nil, 0, ErrMalformedSnapshot
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	rawVersion, hasVersion := fields["v"]
	rawUser, hasUser := fields["user"]
	if !hasVersion || !hasUser {
		u, err := decodeProfile(data)
		if err != nil {
			return nil, 0, err
		}
		return u, schemaVersionLegacy, nil
	}

	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return nil, 0, fmt.Errorf("%w: version: %v", ErrMalformedSnapshot, err)
	}
	if version < 1 || version > CurrentSchemaVersion {
		return nil, version, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	u, err := decodeProfile(rawUser)
	if err != nil {
		return nil, version, err
	}
	return u, version, nil
}

// DecodeUserPayload parses a user object as returned by the server, without
// an envelope.
func DecodeUserPayload(data []byte) (*UserProfile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return decodeProfile(data)
}

func decodeProfile(data []byte) (*UserProfile, error) {
	var u UserProfile
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: missing _id", ErrMalformedSnapshot)
	}
	return &u, nil
}

type profileAlias UserProfile

var knownProfileKeys = map[string]struct{}{
	"_id": {}, "fullName": {}, "email": {}, "phoneNumber": {}, "role": {},
	"department": {}, "profilePic": {}, "facultyId": {}, "designation": {},
	"rollNumber": {}, "associations": {}, "teachingAssignments": {},
	"isVerified": {}, "isBlocked": {}, "tokenVersion": {}, "lastLogin": {},
	"loginAttempts": {}, "deviceToken": {}, "createdAt": {}, "updatedAt": {},
}

// UnmarshalJSON decodes the modeled fields and keeps the rest in Extra.
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	var a profileAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range knownProfileKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}
	a.Extra = raw
	*u = UserProfile(a)
	return nil
}

// MarshalJSON writes the modeled fields plus any preserved Extra fields.
func (u UserProfile) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(profileAlias(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return body, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	for k, v := range u.Extra {
		if _, known := knownProfileKeys[k]; known {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}
