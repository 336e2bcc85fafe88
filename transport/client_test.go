package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/portalAuth/cookiejar"
	"github.com/MrEthical07/portalAuth/tokenstore"
)

type seenRequest struct {
	auth, cookie, device, requestID string
}

func newTestClient(t *testing.T, h http.Handler, opts Options) (*Client, *tokenstore.Store, *cookiejar.Jar) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := tokenstore.New(nil, tokenstore.Options{})
	jar := cookiejar.New()
	opts.BaseURL = srv.URL + "/api/v1"
	c, err := New(store, jar, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, store, jar
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientAttachesCredentialsAtSendTime(t *testing.T) {
	var mu sync.Mutex
	var seen []seenRequest
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, seenRequest{
			auth:      r.Header.Get("Authorization"),
			cookie:    r.Header.Get("Cookie"),
			device:    r.Header.Get(DefaultDeviceHeader),
			requestID: r.Header.Get(RequestIDHeader),
		})
		mu.Unlock()
		if r.URL.Path != "/api/v1/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"_id": "u1"}})
	})
	c, store, jar := newTestClient(t, h, Options{DeviceID: func(context.Context) string { return "linux-1-abc" }})
	ctx := context.Background()

	req := &Request{Method: http.MethodGet, Path: "/users/me"}
	store.Set(ctx, tokenstore.KeyAccessToken, "a1")
	jar.SetFromHeader(ctx, http.Header{"Set-Cookie": {"accessToken=a1", "refreshToken=r1"}})

	if _, err := c.Do(ctx, req); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	store.Set(ctx, tokenstore.KeyAccessToken, "a2")
	if _, err := c.Do(ctx, req); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(seen))
	}
	if seen[0].auth != "Bearer a1" || seen[1].auth != "Bearer a2" {
		t.Fatalf("expected token read at send time, got %q then %q", seen[0].auth, seen[1].auth)
	}
	if seen[0].cookie != "accessToken=a1; refreshToken=r1" {
		t.Fatalf("unexpected cookie header %q", seen[0].cookie)
	}
	if seen[0].device != "linux-1-abc" {
		t.Fatalf("unexpected device header %q", seen[0].device)
	}
	if seen[0].requestID == "" || seen[0].requestID == seen[1].requestID {
		t.Fatalf("expected distinct request ids, got %q %q", seen[0].requestID, seen[1].requestID)
	}
}

func TestClientChannelsAreIndependent(t *testing.T) {
	for _, tc := range []struct {
		name       string
		channels   Channel
		wantAuth   bool
		wantCookie bool
	}{
		{"bearer only", ChannelBearer, true, false},
		{"cookie only", ChannelCookie, false, true},
		{"both", ChannelsAll, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			seen := make(chan seenRequest, 1)
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen <- seenRequest{auth: r.Header.Get("Authorization"), cookie: r.Header.Get("Cookie")}
				w.WriteHeader(http.StatusNoContent)
			})
			c, store, jar := newTestClient(t, h, Options{Channels: tc.channels})
			ctx := context.Background()
			store.Set(ctx, tokenstore.KeyAccessToken, "a1")
			jar.SetFromHeader(ctx, http.Header{"Set-Cookie": {"sid=s1"}})

			if _, err := c.Get(ctx, "ping"); err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			got := <-seen
			if (got.auth != "") != tc.wantAuth || (got.cookie != "") != tc.wantCookie {
				t.Fatalf("unexpected headers %+v for %s", got, tc.channels)
			}
		})
	}
}

func TestClientResponseStagePersistsTokensAndCookies(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "ca", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode": 200,
			"data":       map[string]any{"accessToken": "a9", "user": map[string]any{"_id": "u1"}},
		})
	})
	c, store, jar := newTestClient(t, h, Options{})
	ctx := context.Background()
	store.Set(ctx, tokenstore.KeyRefreshToken, "r-old")

	resp, err := c.Post(ctx, "/users/login", map[string]string{"email": "a@b.c"})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	got := store.Tokens(ctx)
	if got.AccessToken != "a9" || got.RefreshToken != "r-old" {
		t.Fatalf("expected only present half persisted, got %+v", got)
	}
	if jar.Header() != "accessToken=ca" {
		t.Fatalf("expected cookie mirrored, got %q", jar.Header())
	}
	if _, ok := resp.DataField("user"); !ok {
		t.Fatalf("expected user in data")
	}
}

func TestClientErrorEnvelopeBecomesHTTPError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Login Failed", "message": "Invalid credentials"})
	})
	c, _, _ := newTestClient(t, h, Options{})

	_, err := c.Post(context.Background(), "/users/login", nil)
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.StatusCode != 400 || he.Title != "Login Failed" || he.Message != "Invalid credentials" {
		t.Fatalf("unexpected error fields: %+v", he)
	}
}

func TestClientTimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	c, _, _ := newTestClient(t, h, Options{Timeout: 30 * time.Millisecond})
	defer close(block)

	_, err := c.Get(context.Background(), "/slow")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	var ne *NetworkError
	if !errors.As(err, &ne) || !ne.Timeout {
		t.Fatalf("expected timeout NetworkError, got %#v", err)
	}
}

type countingTracker struct {
	mu             sync.Mutex
	started, ended int
	peak, inflight int
}

func (c *countingTracker) RequestStarted() {
	c.mu.Lock()
	c.started++
	c.inflight++
	if c.inflight > c.peak {
		c.peak = c.inflight
	}
	c.mu.Unlock()
}

func (c *countingTracker) RequestFinished() {
	c.mu.Lock()
	c.ended++
	c.inflight--
	c.mu.Unlock()
}

func TestClientTracksEveryAttempt(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	tr := &countingTracker{}
	c, _, _ := newTestClient(t, h, Options{Tracker: tr})
	ctx := context.Background()
	_, _ = c.Get(ctx, "/ok")
	_, _ = c.Get(ctx, "/fail")

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.started != 2 || tr.ended != 2 || tr.inflight != 0 {
		t.Fatalf("unexpected tracker counts %+v", tr)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	store := tokenstore.New(nil, tokenstore.Options{})
	if _, err := New(store, nil, Options{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected base URL validation error")
	}
	if _, err := New(nil, nil, Options{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected missing store error")
	}
}

func TestParseChannels(t *testing.T) {
	if c, ok := ParseChannels("bearer"); !ok || c != ChannelBearer {
		t.Fatalf("unexpected %v %v", c, ok)
	}
	if c, ok := ParseChannels("cookie|bearer"); !ok || c != ChannelsAll {
		t.Fatalf("unexpected %v %v", c, ok)
	}
	if _, ok := ParseChannels("smoke"); ok {
		t.Fatalf("expected unknown channel rejection")
	}
	if c, _ := ParseChannels(""); c.String() != "bearer|cookie" {
		t.Fatalf("unexpected default %s", c)
	}
}
