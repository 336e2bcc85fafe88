package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MrEthical07/portalAuth/cookiejar"
	"github.com/MrEthical07/portalAuth/tokenstore"
)

const (
	// DefaultTimeout bounds every attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultDeviceHeader carries the device id.
	DefaultDeviceHeader = "X-Device-ID"
	// RequestIDHeader carries a fresh ULID per attempt.
	RequestIDHeader = "X-Request-ID"

	defaultMaxBodyBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Channels     Channel
	DeviceHeader string
	// DeviceID supplies the device id at send time. Nil or "" omits the header.
	DeviceID     func(context.Context) string
	HTTPClient   *http.Client
	Tracker      Tracker
	Observer     Observer
	Logger       *slog.Logger
	UserAgent    string
	MaxBodyBytes int64
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	opts     Options
	store    *tokenstore.Store
	jar      *cookiejar.Jar
	http     *http.Client
	tracker  Tracker
	observer Observer
	logger   *slog.Logger

	coordinator atomic.Pointer[Coordinator]
}

// New returns a client for the backend at opts.BaseURL. jar may be nil, in
// which case the cookie channel attaches nothing.
func New(store *tokenstore.Store, jar *cookiejar.Jar, opts Options) (*Client, error) {
	if store == nil {
		return nil, errors.New("transport: token store is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: invalid base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Channels == 0 {
		opts.Channels = ChannelsAll
	}
	if opts.DeviceHeader == "" {
		opts.DeviceHeader = DefaultDeviceHeader
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := &Client{
		base:     base,
		opts:     opts,
		store:    store,
		jar:      jar,
		http:     opts.HTTPClient,
		tracker:  opts.Tracker,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.tracker == nil {
		c.tracker = nopTracker{}
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// SetCoordinator installs the 401 handler. Nil disables refresh handling.
func (c *Client) SetCoordinator(co *Coordinator) { c.coordinator.Store(co) }

// Channels returns the enabled credential channels.
func (c *Client) Channels() Channel { return c.opts.Channels }

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// CurrentAccessToken returns the access token the next attempt would send.
func (c *Client) CurrentAccessToken(ctx context.Context) string {
	tok, _ := c.store.Get(ctx, tokenstore.KeyAccessToken)
	return tok
}

// Do sends req and applies 401 handling.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	req.retried = false
	return c.do(ctx, req)
}

// do is Do without resetting the replay mark; the coordinator replays
// through it so a replayed 401 is final.
func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.attempt(ctx, req)
	if err == nil {
		return resp, nil
	}
	if req.SkipRefresh || !IsUnauthorized(err) {
		return nil, err
	}
	c.observer.Unauthorized()
	co := c.coordinator.Load()
	if co == nil {
		return nil, err
	}
	return co.Handle(ctx, c, req, err)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) resolve(req *Request) (string, error) {
	var u *url.URL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		parsed, err := url.Parse(req.Path)
		if err != nil {
			return "", err
		}
		u = parsed
	} else {
		cp := *c.base
		cp.Path = c.base.Path + "/" + strings.TrimLeft(req.Path, "/")
		u = &cp
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// attempt performs one network round trip through both stages.
func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.resolve(req)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", req.Path, err)
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: encode body: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}
	requestID := ulid.Make().String()
	httpReq.Header.Set(RequestIDHeader, requestID)
	c.attachCredentials(ctx, httpReq, req)

	c.tracker.RequestStarted()
	defer c.tracker.RequestFinished()

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		c.observer.AttemptFinished(0, time.Since(start))
		ne := &NetworkError{Method: method, Path: req.Path, Timeout: isTimeout(err), Err: err}
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", req.Path,
			"request_id", requestID, "timeout", ne.Timeout, "error", err)
		return nil, ne
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, c.opts.MaxBodyBytes))
	c.observer.AttemptFinished(res.StatusCode, time.Since(start))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: req.Path, Timeout: isTimeout(err), Err: err}
	}

	if c.jar != nil {
		c.jar.SetFromHeader(ctx, res.Header)
	}

	var env Envelope
	if len(bytes.TrimSpace(data)) > 0 {
		_ = json.Unmarshal(data, &env)
	}

	c.logger.DebugContext(ctx, "request completed", "method", method, "path", req.Path,
		"request_id", requestID, "status", res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     method,
			Path:       req.Path,
			StatusCode: res.StatusCode,
			Title:      env.Error,
			Message:    env.Message,
			Body:       data,
		}
	}

	c.persistTokens(ctx, env)
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
		Envelope:   env,
		RequestID:  requestID,
	}, nil
}

func (c *Client) attachCredentials(ctx context.Context, httpReq *http.Request, req *Request) {
	access, _ := c.store.Get(ctx, tokenstore.KeyAccessToken)
	req.sentAccess = access

	if c.opts.Channels.Has(ChannelBearer) && access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}
	if c.opts.Channels.Has(ChannelCookie) && c.jar != nil {
		if cookie := c.jar.Header(); cookie != "" {
			httpReq.Header.Set("Cookie", cookie)
		}
	}
	if c.opts.DeviceID != nil && httpReq.Header.Get(c.opts.DeviceHeader) == "" {
		if id := c.opts.DeviceID(ctx); id != "" {
			httpReq.Header.Set(c.opts.DeviceHeader, id)
		}
	}
}

func (c *Client) persistTokens(ctx context.Context, env Envelope) {
	if !env.HasData() {
		return
	}
	var td tokenData
	if err := json.Unmarshal(env.Data, &td); err != nil {
		return
	}
	pair := tokenstore.TokenPair{AccessToken: td.AccessToken, RefreshToken: td.RefreshToken}
	if pair.Empty() {
		return
	}
	c.store.SaveTokens(ctx, pair)
	c.logger.DebugContext(ctx, "tokens persisted from response",
		"access", pair.AccessToken != "", "refresh", pair.RefreshToken != "")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
