package portaltest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	portaljwt "github.com/MrEthical07/portalAuth/jwt"
)

type credentialsBody struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DeviceID     string `json:"deviceId"`
	Platform     string `json:"platform"`
	RefreshToken string `json:"refreshToken"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.login.Add(1)
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Validation Error", "invalid JSON body")
		return
	}

	email := normalizeEmail(body.Email)
	b.mu.Lock()
	acct, ok := b.accounts[email]
	if !ok || acct.password != body.Password {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Login Failed", "Invalid email or password")
		return
	}
	if blocked, _ := acct.profile["isBlocked"].(bool); blocked {
		b.mu.Unlock()
		writeError(w, http.StatusForbidden, "Account Blocked", "Your account has been blocked")
		return
	}
	pair, err := b.issueLocked(email, acct, body.DeviceID)
	profile := copyProfile(acct.profile)
	b.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server Error", err.Error())
		return
	}

	setTokenCookies(w, pair)
	writeData(w, http.StatusOK, "Login successful", map[string]any{
		"user":         profile,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refresh.Add(1)

	b.mu.Lock()
	hook := b.refreshHook
	forced := b.refreshStatus
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	if forced != 0 {
		writeError(w, forced, "Refresh Failed", http.StatusText(forced))
		return
	}

	var body credentialsBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	token := body.RefreshToken
	if token == "" {
		if c, err := r.Cookie("refreshToken"); err == nil {
			token = c.Value
		}
	}

	b.mu.Lock()
	email, live := b.liveRefresh[token]
	if !live {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid refresh token")
		return
	}
	if _, err := b.tokens.Parse(token, portaljwt.KindRefresh); err != nil {
		delete(b.liveRefresh, token)
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Refresh token expired")
		return
	}
	delete(b.liveRefresh, token)
	acct := b.accounts[email]
	pair, err := b.issueLocked(email, acct, body.DeviceID)
	profile := copyProfile(acct.profile)
	b.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server Error", err.Error())
		return
	}

	setTokenCookies(w, pair)
	writeData(w, http.StatusOK, "Token refreshed", map[string]any{
		"user":         profile,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.me.Add(1)
	b.mu.Lock()
	forced, omit := b.meStatus, b.omitMeUser
	b.mu.Unlock()
	if forced != 0 {
		writeError(w, forced, http.StatusText(forced), "forced by test")
		return
	}

	email, _, ok := b.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "jwt expired")
		return
	}
	if omit {
		writeData(w, http.StatusOK, "No user", nil)
		return
	}
	b.mu.Lock()
	profile := copyProfile(b.accounts[email].profile)
	b.mu.Unlock()
	writeData(w, http.StatusOK, "User fetched", profile)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logout.Add(1)
	b.mu.Lock()
	forced := b.logoutStatus
	b.mu.Unlock()
	if forced != 0 {
		writeError(w, forced, http.StatusText(forced), "forced by test")
		return
	}
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (b *Backend) handleResource(w http.ResponseWriter, r *http.Request) {
	b.resource.Add(1)
	_, bearer, ok := b.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "jwt expired")
		return
	}
	b.mu.Lock()
	b.lastBearer = bearer
	b.mu.Unlock()
	writeData(w, http.StatusOK, "ok", map[string]any{"name": chi.URLParam(r, "name"), "items": []any{}})
}

// authorize accepts a bearer token or an accessToken cookie.
func (b *Backend) authorize(r *http.Request) (email, token string, ok bool) {
	token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		if c, err := r.Cookie("accessToken"); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return "", "", false
	}
	claims, err := b.tokens.Parse(token, portaljwt.KindAccess)
	if err != nil {
		return "", "", false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, revoked := b.revoked[claims.ID]; revoked {
		return "", "", false
	}
	email, known := b.byID[claims.UserID]
	if !known {
		return "", "", false
	}
	return email, token, true
}

func (b *Backend) issueLocked(email string, acct *account, deviceID string) (portaljwt.Pair, error) {
	id, _ := acct.profile["_id"].(string)
	role, _ := acct.profile["role"].(string)
	pair, err := b.tokens.Issue(portaljwt.Subject{UserID: id, Role: role, DeviceID: deviceID, TokenVersion: acct.version})
	if err != nil {
		return pair, err
	}
	claims, err := b.tokens.Parse(pair.AccessToken, portaljwt.KindAccess)
	if err == nil {
		b.issuedAccess = append(b.issuedAccess, claims.ID)
	}
	b.liveRefresh[pair.RefreshToken] = email
	return pair, nil
}

func setTokenCookies(w http.ResponseWriter, pair portaljwt.Pair) {
	http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: pair.AccessToken, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: pair.RefreshToken, Path: "/", HttpOnly: true})
}

func copyProfile(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
