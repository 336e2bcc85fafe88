package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("portal-test-secret-0123456789"),
		Issuer:        "portal",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)
	pair, err := m.Issue(Subject{UserID: "u1", Role: "faculty", DeviceID: "ios-1-x", TokenVersion: 2})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(pair.AccessToken, KindAccess)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "faculty" || claims.TokenVersion != 2 {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := m.Parse(pair.RefreshToken, KindRefresh); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
}

func TestParseRejectsKindConfusion(t *testing.T) {
	m := newHSManager(t, nil)
	pair, _ := m.Issue(Subject{UserID: "u1"})
	if _, err := m.Parse(pair.RefreshToken, KindAccess); err == nil {
		t.Fatal("refresh token must not be accepted as access token")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := newHSManager(t, func() time.Time { return now })
	pair, _ := m.Issue(Subject{UserID: "u1"})

	now = now.Add(16 * time.Minute)
	if _, err := m.Parse(pair.AccessToken, KindAccess); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	hs := newHSManager(t, nil)
	pair, _ := hs.Issue(Subject{UserID: "u1"})
	if _, err := m.Parse(pair.AccessToken, KindAccess); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestInspectReadsExpiryWithoutKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := newHSManager(t, func() time.Time { return now })
	pair, _ := m.Issue(Subject{UserID: "u1", Role: "student"})

	in, err := Inspect(pair.AccessToken)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if in.Subject != "u1" || in.Kind != KindAccess || in.Role != "student" {
		t.Fatalf("unexpected inspection %+v", in)
	}
	if !in.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", in.ExpiresAt)
	}
	if in.ExpiresWithin(now, time.Minute) {
		t.Fatal("token should not be near expiry")
	}
	if !in.ExpiresWithin(now, 15*time.Minute) {
		t.Fatal("token should be inside a 15m window")
	}
}

func TestInspectRejectsOpaqueToken(t *testing.T) {
	if _, err := Inspect("opaque-session-token"); !errors.Is(err, ErrNotJWT) {
		t.Fatalf("expected ErrNotJWT, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{AccessTTL: time.Hour, RefreshTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef")},
		{AccessTTL: time.Minute, SigningMethod: "rs256"},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
