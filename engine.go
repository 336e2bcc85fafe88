package portalAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/portalAuth/cookiejar"
	"github.com/MrEthical07/portalAuth/device"
	"github.com/MrEthical07/portalAuth/events"
	"github.com/MrEthical07/portalAuth/internal/audit"
	"github.com/MrEthical07/portalAuth/internal/flows"
	portaljwt "github.com/MrEthical07/portalAuth/jwt"
	"github.com/MrEthical07/portalAuth/notify"
	"github.com/MrEthical07/portalAuth/querycache"
	"github.com/MrEthical07/portalAuth/refresh"
	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/tokenstore"
	"github.com/MrEthical07/portalAuth/transport"
)

// Engine is the session manager and composition root. It owns the token
// store, cookie jar, refresh guard, event bus and query cache, and issues
// every backend call through one authenticated transport client.
//
// Engine methods are safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	store       *tokenstore.Store
	jar         *cookiejar.Jar
	device      *device.Resolver
	guard       *refresh.Guard
	client      *transport.Client
	coordinator *transport.Coordinator
	bus         *events.Bus
	cache       *querycache.Cache
	cacheToken  events.Token
	notifier    notify.Notifier
	flows       flows.Service
	refreshSvc  *RefreshService
	audit       *audit.Dispatcher
	metrics     *Metrics

	closers   []func() error
	closeOnce sync.Once

	startMu sync.Mutex

	mu    sync.RWMutex
	user  *session.UserProfile
	state session.State

	obsMu     sync.Mutex
	observers []sessionObserver
	nextObs   uint64
}

type sessionObserver struct {
	id uint64
	fn func(session.Snapshot)
}

/*
====================================
LIFECYCLE
====================================
*/

// Start restores the persisted session and verifies it with the server.
//
// A cached user confirmed by GET /users/me becomes AUTHENTICATED. A network
// or server failure keeps the cached user and stays AUTHENTICATED. A
// rejected session, or a response without a user, becomes UNAUTHENTICATED.
// Without a cached user no request is made.
func (e *Engine) Start(ctx context.Context) session.Snapshot {
	if e == nil {
		return session.NewSnapshot(nil, session.StateUnauthenticated, false, "")
	}
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.config.Storage.PersistCookies {
		if err := e.jar.Load(ctx); err != nil {
			e.logger.WarnContext(ctx, "cookie jar not restored", "error", err)
		}
	}

	if _, ok := e.device.Current(ctx); !ok {
		if _, err := e.device.ID(ctx); err != nil {
			e.logger.ErrorContext(ctx, "device id generation failed", "error", err)
		} else {
			e.emitAudit(ctx, auditEventDeviceIDGenerated, true, nil, nil, nil)
		}
	}

	res := e.flows.Startup(ctx)
	switch res.Outcome {
	case flows.StartupNoSession:
		e.setSession(nil, session.StateUnauthenticated)
	case flows.StartupVerified:
		e.metrics.Inc(MetricStartupVerified)
		e.emitAudit(ctx, auditEventStartupVerified, true, res.User, nil, nil)
		e.saveUser(ctx, res.User)
	case flows.StartupOffline:
		e.metrics.Inc(MetricStartupOffline)
		e.logger.InfoContext(ctx, "session kept offline", "error", res.Err)
		e.emitAudit(ctx, auditEventStartupOffline, true, res.User, res.Err, nil)
		e.setSession(res.User, session.StateAuthenticated)
	case flows.StartupRejected:
		e.metrics.Inc(MetricStartupRejected)
		e.logger.InfoContext(ctx, "cached session rejected", "error", res.Err)
		e.emitAudit(ctx, auditEventStartupRejected, false, nil, res.Err, nil)
		e.store.Clear(ctx, tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUserData)
		e.jar.Clear(ctx)
		e.setSession(nil, session.StateUnauthenticated)
	}

	return e.Session()
}

// Close stops the audit dispatcher and closes owned connections. It is
// idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.bus.Unsubscribe(e.cacheToken)
		e.closeResources()
	})
}

func (e *Engine) closeResources() {
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}
}

/*
====================================
AUTHENTICATION
====================================
*/

// Login authenticates with email and password.
//
// On success the user is persisted, the refresh guard is reset and the
// session becomes AUTHENTICATED. On failure the session becomes
// UNAUTHENTICATED and the error is an *AuthError carrying the server's
// title and message, a *transport.NetworkError, or ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*session.UserProfile, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, flows.LoginRequest{Email: email, Password: password})
	if res.Failure != flows.LoginFailureNone {
		err := e.loginError(res)
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, nil, err, nil)
		e.setSession(nil, session.StateUnauthenticated)

		title, msg := "Login Failed", "Unable to log in. Please try again."
		var authErr *AuthError
		switch {
		case errors.As(err, &authErr):
			if authErr.Title != "" {
				title = authErr.Title
			}
			if authErr.Message != "" {
				msg = authErr.Message
			}
		case errors.Is(err, ErrNetwork):
			msg = "Unable to reach the server. Check your connection."
		case errors.Is(err, ErrInvalidCredentials):
			msg = "Email and password are required."
		}
		e.notifier.Notify(ctx, notify.Error(title, msg))
		return nil, err
	}

	e.guard.Reset()
	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User, nil, nil)
	e.setSession(res.User, session.StateAuthenticated)
	if e.config.Session.NotifyLogin {
		e.notifier.Notify(ctx, notify.Success("Welcome", "Logged in as "+res.User.FullName))
	}
	e.logger.InfoContext(ctx, "login succeeded", "user_id", res.User.ID, "role", res.User.Role)
	return res.User.Clone(), nil
}

func (e *Engine) loginError(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureInvalidInput:
		return ErrInvalidCredentials
	case flows.LoginFailureNoDevice:
		if res.Err != nil {
			return fmt.Errorf("%w: %w", ErrNoDeviceID, res.Err)
		}
		return ErrNoDeviceID
	case flows.LoginFailureRejected:
		return &AuthError{Title: res.Title, Message: res.Message, Status: res.Status, Err: res.Err}
	case flows.LoginFailureMalformed:
		return &AuthError{Message: "login response carried no user", Err: ErrMalformedResponse}
	default:
		return res.Err
	}
}

// RefreshToken exchanges the refresh token for a new pair. It returns false
// without a network call when another refresh is in flight or the last one
// happened less than Refresh.MinInterval ago. Failures never log the user
// out here; only the 401 path does that.
func (e *Engine) RefreshToken(ctx context.Context) bool {
	if e == nil {
		return false
	}
	if !e.guard.TryAcquire(e.now(), e.config.Refresh.MinInterval) {
		e.metrics.Inc(MetricRefreshThrottled)
		e.emitAudit(ctx, auditEventRefreshThrottled, false, e.User(), ErrRefreshThrottled, nil)
		return false
	}
	err := e.ExchangeRefresh(ctx)
	e.guard.ReleaseWithResult(e.now(), err == nil)
	return err == nil
}

// ExchangeRefresh performs one refresh-token exchange without consulting the
// guard. It is the transport.Refresher hook; application code calls
// RefreshToken instead. Every failure is an *AuthError wrapping the cause.
func (e *Engine) ExchangeRefresh(ctx context.Context) error {
	res := e.flows.RefreshExchange(ctx)
	if res.Failure == flows.RefreshFailureNone {
		e.metrics.Inc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.User, nil, nil)
		e.logger.DebugContext(ctx, "token refreshed", "user_id", res.User.ID)
		return nil
	}

	err := refreshError(res)
	e.metrics.Inc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshFailure, false, e.User(), err, nil)
	e.logger.InfoContext(ctx, "token refresh failed", "error", err)
	return err
}

func refreshError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureNoDevice:
		return &AuthError{Message: "no device id stored", Err: ErrNoDeviceID}
	case flows.RefreshFailureNoCredential:
		return &AuthError{Message: "no refresh credential stored", Err: ErrNotAuthenticated}
	case flows.RefreshFailureMissingUser:
		return &AuthError{Message: "refresh response carried no user", Status: res.Status, Err: ErrMalformedResponse}
	case flows.RefreshFailureRejected:
		var httpErr *transport.HTTPError
		if errors.As(res.Err, &httpErr) {
			return &AuthError{Title: httpErr.Title, Message: httpErr.Message, Status: httpErr.StatusCode, Err: res.Err}
		}
		return &AuthError{Status: res.Status, Err: res.Err}
	default:
		return &AuthError{Message: "refresh request failed", Err: res.Err}
	}
}

// ForceLogout ends the session after a failed refresh. It is the
// transport.Refresher hook and behaves like Logout except that the device
// id is kept.
func (e *Engine) ForceLogout(ctx context.Context) {
	e.metrics.Inc(MetricForcedLogout)
	e.emitAudit(ctx, auditEventForcedLogout, true, e.User(), nil, nil)
	res := e.flows.ForcedLogout(ctx)
	e.logRemoteLogout(ctx, res)
	e.notifier.Notify(ctx, notify.Info("Session Expired", "Please log in again."))
}

// Logout tells the server best-effort, then clears all persisted entries,
// the cookie jar, the query cache and the guard. The session is
// UNAUTHENTICATED afterwards even when the server call fails.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	user := e.User()
	res := e.logout(ctx)
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, user, res.RemoteErr, func() map[string]string {
		return map[string]string{"remote_ok": fmt.Sprint(res.RemoteErr == nil && !res.RemoteSkipped)}
	})
	return nil
}

func (e *Engine) logout(ctx context.Context) flows.LogoutResult {
	res := e.flows.Logout(ctx)
	e.logRemoteLogout(ctx, res)
	return res
}

func (e *Engine) logRemoteLogout(ctx context.Context, res flows.LogoutResult) {
	if res.RemoteErr != nil {
		e.metrics.Inc(MetricLogoutRemoteFailure)
		e.logger.InfoContext(ctx, "server logout failed; local session cleared", "error", res.RemoteErr)
	}
}

// clearLocal is the full logout wipe, device id included.
func (e *Engine) clearLocal(ctx context.Context) {
	e.store.Delete(ctx, tokenstore.KeyDeviceID)
	e.clearSession(ctx)
}

func (e *Engine) clearSession(ctx context.Context) {
	e.store.Clear(ctx, tokenstore.KeyAccessToken, tokenstore.KeyRefreshToken, tokenstore.KeyUserData)
	e.jar.Clear(ctx)
	e.guard.Reset()
	e.cache.Clear()
	e.setSession(nil, session.StateUnauthenticated)
}

// EnsureFresh refreshes ahead of expiry when the stored access token is a
// JWT expiring within the given window. within <= 0 uses
// Refresh.ProactiveLeeway. It reports whether a refresh happened.
// Opaque tokens are left alone.
func (e *Engine) EnsureFresh(ctx context.Context, within time.Duration) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if within <= 0 {
		within = e.config.Refresh.ProactiveLeeway
	}
	token, ok := e.store.Get(ctx, tokenstore.KeyAccessToken)
	if !ok || token == "" {
		return false, ErrNotAuthenticated
	}
	info, err := portaljwt.Inspect(token)
	if err != nil {
		if errors.Is(err, portaljwt.ErrNotJWT) {
			return false, nil
		}
		return false, err
	}
	if !info.ExpiresWithin(e.now(), within) {
		return false, nil
	}

	e.metrics.Inc(MetricProactiveRefresh)
	e.emitAudit(ctx, auditEventProactiveRefresh, true, e.User(), nil, func() map[string]string {
		return map[string]string{"expires_at": info.ExpiresAt.UTC().Format(time.RFC3339)}
	})
	if !e.RefreshToken(ctx) {
		return false, ErrRefreshThrottled
	}
	return true, nil
}

/*
====================================
SESSION STATE
====================================
*/

// UpdateUser merges patch into the current user and persists it. No request
// is made and the state does not change. It returns false without a user.
func (e *Engine) UpdateUser(ctx context.Context, patch session.UserPatch) bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	if e.user == nil {
		e.mu.Unlock()
		return false
	}
	if patch.Empty() {
		e.mu.Unlock()
		return true
	}
	updated := patch.Apply(e.user)
	e.user = updated
	e.mu.Unlock()

	e.persistUser(ctx, updated)
	e.emitAudit(ctx, auditEventUserUpdatedLocal, true, updated, nil, nil)
	e.notifyObservers()
	return true
}

// Session returns an immutable snapshot of the session.
func (e *Engine) Session() session.Snapshot {
	if e == nil {
		return session.NewSnapshot(nil, session.StateUnauthenticated, false, "")
	}
	e.mu.RLock()
	user, state := e.user, e.state
	e.mu.RUnlock()
	id, _ := e.device.Current(context.Background())
	return session.NewSnapshot(user, state, e.cache.IsLoading(), id)
}

// User returns a copy of the current user, or nil.
func (e *Engine) User() *session.UserProfile {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.user.Clone()
}

// IsAuthenticated reports whether a user is signed in.
func (e *Engine) IsAuthenticated() bool {
	return e.Session().IsAuthenticated
}

// DeviceID returns the persisted device id, generating it on first use.
// Repeated calls return the same id until Logout clears it.
func (e *Engine) DeviceID(ctx context.Context) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	id, err := e.device.ID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoDeviceID, err)
	}
	return id, nil
}

// HasCachedSession reports whether a user snapshot is persisted.
func (e *Engine) HasCachedSession(ctx context.Context) bool {
	if e == nil {
		return false
	}
	return e.loadUser(ctx) != nil
}

// OnSessionChange registers fn to receive a snapshot after every session
// change. The returned function unregisters it.
func (e *Engine) OnSessionChange(fn func(session.Snapshot)) func() {
	if e == nil || fn == nil {
		return func() {}
	}
	e.obsMu.Lock()
	e.nextObs++
	id := e.nextObs
	e.observers = append(e.observers, sessionObserver{id: id, fn: fn})
	e.obsMu.Unlock()

	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) setSession(user *session.UserProfile, state session.State) {
	e.mu.Lock()
	e.user = user
	e.state = state
	e.mu.Unlock()
	e.notifyObservers()
}

func (e *Engine) notifyObservers() {
	e.obsMu.Lock()
	obs := append([]sessionObserver(nil), e.observers...)
	e.obsMu.Unlock()
	if len(obs) == 0 {
		return
	}
	snap := e.Session()
	for _, o := range obs {
		o.fn(snap)
	}
}

func (e *Engine) persistUser(ctx context.Context, u *session.UserProfile) {
	data, err := session.EncodeUser(u)
	if err != nil {
		e.logger.ErrorContext(ctx, "user snapshot not encoded", "error", err)
		return
	}
	e.store.Set(ctx, tokenstore.KeyUserData, string(data))
}

// saveUser is the flow callback for a user returned by login, refresh or
// profile fetch.
func (e *Engine) saveUser(ctx context.Context, u *session.UserProfile) {
	e.persistUser(ctx, u)
	e.setSession(u, session.StateAuthenticated)
}

func (e *Engine) loadUser(ctx context.Context) *session.UserProfile {
	raw, ok := e.store.Get(ctx, tokenstore.KeyUserData)
	if !ok || raw == "" {
		return nil
	}
	u, _, err := session.DecodeUser([]byte(raw))
	if err != nil {
		e.logger.WarnContext(ctx, "cached user snapshot ignored", "error", err)
		return nil
	}
	return u
}

/*
====================================
ACCESSORS
====================================
*/

// Client returns the authenticated HTTP client for domain calls.
func (e *Engine) Client() *transport.Client { return e.client }

// Bus returns the engine-owned event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Cache returns the query cache.
func (e *Engine) Cache() *querycache.Cache { return e.cache }

// RefreshService returns the data refresh helpers.
func (e *Engine) RefreshService() *RefreshService { return e.refreshSvc }

// Guard returns the refresh guard.
func (e *Engine) Guard() *refresh.Guard { return e.guard }

// Metrics returns the live counter set.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// MetricsSnapshot copies the counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

func (e *Engine) flowDeps() flows.Deps {
	platform := e.device.Platform()
	current := e.device.Current
	profile := flows.ProfileDeps{Sender: e.client, SaveUser: e.saveUser}
	return flows.Deps{
		Login: flows.LoginDeps{
			Sender:   e.client,
			DeviceID: e.device.ID,
			Platform: platform,
			SaveUser: e.persistUser,
		},
		Refresh: flows.RefreshDeps{
			Sender:   e.client,
			DeviceID: current,
			Platform: platform,
			RefreshToken: func(ctx context.Context) string {
				return e.store.Tokens(ctx).RefreshToken
			},
			HasCookieCredential: func() bool {
				return e.client.Channels().Has(transport.ChannelCookie) && e.jar.Len() > 0
			},
			SaveUser: e.saveUser,
		},
		Logout: flows.LogoutDeps{
			Sender:       e.client,
			DeviceID:     current,
			Platform:     platform,
			ClearLocal:   e.clearLocal,
			ClearSession: e.clearSession,
		},
		Profile: profile,
		Startup: flows.StartupDeps{
			LoadUser:      e.loadUser,
			Profile:       flows.ProfileDeps{Sender: e.client},
			IsAuthFailure: IsAuthFailure,
		},
	}
}
