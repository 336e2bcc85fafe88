package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
)

// Request describes one logical call. The same Request value is reused for
// a replay after refresh. A Request may be passed to Do again once the
// previous call returned, but not by two goroutines at once.
type Request struct {
	Method string
	// Path is joined to the client's base URL unless it is absolute.
	Path  string
	Query url.Values
	// Body is sent as JSON unless it is []byte.
	Body   any
	Header http.Header

	// SkipRefresh disables 401 handling. Set on login, refresh and logout.
	SkipRefresh bool

	retried    bool
	sentAccess string
}

// Retried reports whether the last Do replayed the request.
func (r *Request) Retried() bool { return r.retried }

// SentAccessToken returns the access token attached on the last attempt.
func (r *Request) SentAccessToken() string { return r.sentAccess }

// Envelope is the portal response wrapper.
type Envelope struct {
	StatusCode int             `json:"statusCode,omitempty"`
	Success    *bool           `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the envelope carries a non-null data object.
func (e Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Envelope   Envelope
	RequestID  string
}

// DecodeData unmarshals the envelope's data object into v.
func (r *Response) DecodeData(v any) error {
	if !r.Envelope.HasData() {
		return nil
	}
	return json.Unmarshal(r.Envelope.Data, v)
}

// DataField returns one raw field of the data object.
func (r *Response) DataField(name string) (json.RawMessage, bool) {
	if !r.Envelope.HasData() {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Envelope.Data, &m); err != nil {
		return nil, false
	}
	v, ok := m[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

type tokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
