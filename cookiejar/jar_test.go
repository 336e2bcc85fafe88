package cookiejar

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/portalAuth/tokenstore"
)

func header(cookies ...string) http.Header {
	h := http.Header{}
	for _, c := range cookies {
		h.Add("Set-Cookie", c)
	}
	return h
}

func TestJarMirrorsSetCookieInOrder(t *testing.T) {
	ctx := context.Background()
	j := New()

	j.SetFromHeader(ctx, header("accessToken=a1; Path=/; HttpOnly", "refreshToken=r1; Path=/"))
	if got := j.Header(); got != "accessToken=a1; refreshToken=r1" {
		t.Fatalf("unexpected header %q", got)
	}

	j.SetFromHeader(ctx, header("accessToken=a2; Path=/"))
	if got := j.Header(); got != "accessToken=a2; refreshToken=r1" {
		t.Fatalf("expected in-place update preserving order, got %q", got)
	}
}

func TestJarExpiredCookieDeletesEntry(t *testing.T) {
	ctx := context.Background()
	j := New()
	j.SetFromHeader(ctx, header("accessToken=a1", "refreshToken=r1"))

	j.SetFromHeader(ctx, header("accessToken=; Max-Age=0"))
	if got := j.Header(); got != "refreshToken=r1" {
		t.Fatalf("expected Max-Age=0 to remove cookie, got %q", got)
	}

	j.SetFromHeader(ctx, header("refreshToken=; Expires=Thu, 01 Jan 1970 00:00:00 GMT"))
	if got := j.Header(); got != "" {
		t.Fatalf("expected past Expires to remove cookie, got %q", got)
	}
}

func TestJarHeaderSkipsLapsedEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	j := New(WithClock(func() time.Time { return now }))
	j.SetFromHeader(ctx, header("short=1; Max-Age=10", "long=2; Max-Age=3600"))

	now = now.Add(11 * time.Second)
	if got := j.Header(); got != "long=2" {
		t.Fatalf("expected lapsed cookie hidden, got %q", got)
	}
	if len(j.Cookies()) != 1 {
		t.Fatalf("expected one live cookie")
	}
}

func TestJarPersistsThroughBackend(t *testing.T) {
	ctx := context.Background()
	mem := tokenstore.NewMemoryBackend()
	j := New(WithBackend(mem))
	j.SetFromHeader(ctx, header("sid=abc; Path=/"))

	restored := New(WithBackend(mem))
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := restored.Header(); got != "sid=abc" {
		t.Fatalf("expected restored jar, got %q", got)
	}

	restored.Clear(ctx)
	if restored.Header() != "" {
		t.Fatalf("expected empty jar after Clear")
	}
	if _, ok, _ := mem.Get(ctx, PersistKey); ok {
		t.Fatalf("expected persisted cookies removed")
	}
}

func TestJarNoSetCookieIsNoop(t *testing.T) {
	if New().SetFromHeader(context.Background(), http.Header{}) {
		t.Fatalf("expected no change")
	}
}
