package portaltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	portaljwt "github.com/MrEthical07/portalAuth/jwt"
)

// APIPrefix is where the fake mounts its routes.
const APIPrefix = "/api/v1"

type account struct {
	password string
	profile  map[string]any
	version  int
}

// Counters is a snapshot of per-endpoint call counts.
type Counters struct {
	Login, Refresh, Me, Logout, Resource int64
}

// Backend is the fake portal server.
type Backend struct {
	Server *httptest.Server
	tokens *portaljwt.Manager

	mu            sync.Mutex
	accounts      map[string]*account // by email
	byID          map[string]string   // id -> email
	liveRefresh   map[string]string   // refresh token -> email
	revoked       map[string]struct{} // access token jti
	issuedAccess  []string
	lastBearer    string
	meStatus      int
	logoutStatus  int
	refreshStatus int
	refreshHook   func()
	omitMeUser    bool

	login, refresh, me, logout, resource atomic.Int64
}

// New starts a backend with HS256 tokens valid for accessTTL.
func New(accessTTL time.Duration) *Backend {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	mgr, err := portaljwt.NewManager(portaljwt.Config{
		AccessTTL:     accessTTL,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: portaljwt.MethodHS256,
		PrivateKey:    []byte("portaltest-signing-key-" + uuid.NewString()),
		Issuer:        "portaltest",
	})
	if err != nil {
		panic(err)
	}
	b := &Backend{
		tokens:      mgr,
		accounts:    make(map[string]*account),
		byID:        make(map[string]string),
		liveRefresh: make(map[string]string),
		revoked:     make(map[string]struct{}),
	}
	b.Server = httptest.NewServer(b.Router())
	return b
}

// URL returns the API base URL to configure clients with.
func (b *Backend) URL() string { return b.Server.URL + APIPrefix }

// Close stops the server.
func (b *Backend) Close() { b.Server.Close() }

// Router returns the HTTP handler.
func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/users/login", b.handleLogin)
		r.Post("/users/refresh-token", b.handleRefresh)
		r.Get("/users/me", b.handleMe)
		r.Post("/users/logout", b.handleLogout)
		r.Get("/resources/{name}", b.handleResource)
	})
	return r
}

// AddUser registers an account and returns its id. profile may be nil.
func (b *Backend) AddUser(email, password, fullName, role string, profile map[string]any) string {
	email = normalizeEmail(email)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	p := map[string]any{
		"_id":           id,
		"fullName":      fullName,
		"email":         email,
		"role":          role,
		"isVerified":    true,
		"isBlocked":     false,
		"tokenVersion":  0,
		"associations":  map[string]any{"courses": []string{}, "sessions": []string{}, "semesters": []string{}, "subjects": []string{}},
		"loginAttempts": map[string]any{"count": 0},
	}
	for k, v := range profile {
		p[k] = v
	}
	b.mu.Lock()
	b.accounts[email] = &account{password: password, profile: p}
	b.byID[id] = email
	b.mu.Unlock()
	return id
}

// SetProfileField changes a field of the stored profile.
func (b *Backend) SetProfileField(email, field string, value any) {
	email = normalizeEmail(email)
	b.mu.Lock()
	if a, ok := b.accounts[email]; ok {
		a.profile[field] = value
	}
	b.mu.Unlock()
}

// ExpireAccessTokens invalidates every access token issued so far.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	for _, jti := range b.issuedAccess {
		b.revoked[jti] = struct{}{}
	}
	b.issuedAccess = nil
	b.mu.Unlock()
}

// RevokeRefreshTokens invalidates every live refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	b.liveRefresh = make(map[string]string)
	b.mu.Unlock()
}

// SetMeStatus forces GET /users/me to answer with status. 0 restores
// normal behavior.
func (b *Backend) SetMeStatus(status int) { b.setInt(&b.meStatus, status) }

// SetMeWithoutUser makes GET /users/me answer 200 with a null data object.
func (b *Backend) SetMeWithoutUser(v bool) {
	b.mu.Lock()
	b.omitMeUser = v
	b.mu.Unlock()
}

// SetLogoutStatus forces POST /users/logout to answer with status.
func (b *Backend) SetLogoutStatus(status int) { b.setInt(&b.logoutStatus, status) }

// SetRefreshStatus forces POST /users/refresh-token to answer with status.
func (b *Backend) SetRefreshStatus(status int) { b.setInt(&b.refreshStatus, status) }

// SetRefreshHook runs fn at the start of every refresh call, before any
// token is checked. Tests use it to hold a refresh open.
func (b *Backend) SetRefreshHook(fn func()) {
	b.mu.Lock()
	b.refreshHook = fn
	b.mu.Unlock()
}

// Counters returns call counts per endpoint.
func (b *Backend) Counters() Counters {
	return Counters{
		Login:    b.login.Load(),
		Refresh:  b.refresh.Load(),
		Me:       b.me.Load(),
		Logout:   b.logout.Load(),
		Resource: b.resource.Load(),
	}
}

// Total returns the number of calls across all endpoints.
func (c Counters) Total() int64 { return c.Login + c.Refresh + c.Me + c.Logout + c.Resource }

// LastBearer returns the access token seen on the last authorized resource
// call.
func (b *Backend) LastBearer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBearer
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (b *Backend) setInt(dst *int, v int) {
	b.mu.Lock()
	*dst = v
	b.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"success":    status < 400,
		"message":    message,
		"data":       data,
	})
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "success": false, "error": title, "message": message})
}
