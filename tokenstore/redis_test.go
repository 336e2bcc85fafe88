package tokenstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	b := NewRedisBackend(rdb, "cp")

	if _, ok, err := b.Get(ctx, "deviceId"); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "deviceId", "android-1700000000000-k3j4h5g6f7d8s"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := mr.Get("cp:deviceId"); got != "android-1700000000000-k3j4h5g6f7d8s" {
		t.Fatalf("unexpected raw redis value %q", got)
	}
	if err := b.Delete(ctx, "deviceId"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("cp:deviceId") {
		t.Fatalf("expected key removed")
	}
}

func TestStoreOverRedisReportsOutage(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	failures := 0
	s := New(NewRedisBackend(rdb, ""), Options{OnFailure: func(error) { failures++ }})

	s.Set(ctx, KeyAccessToken, "a1")
	if got, _ := mr.Get("portal:accessToken"); got != "a1" {
		t.Fatalf("expected write-through, got %q", got)
	}

	mr.Close()
	s.Set(ctx, KeyAccessToken, "a2")

	if failures == 0 {
		t.Fatalf("expected outage to be reported")
	}
	if v, _ := s.Get(ctx, KeyAccessToken); v != "a2" {
		t.Fatalf("expected mirror value a2, got %q", v)
	}
}

func TestStoresSharingRedisSeeEachOthersWrites(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	a := New(NewRedisBackend(rdb, "shared"), Options{})
	b := New(NewRedisBackend(rdb, "shared"), Options{})
	if !a.ReadThrough() {
		t.Fatalf("redis-backed store must read through")
	}

	a.SaveTokens(ctx, TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	if got := b.Tokens(ctx); got.RefreshToken != "refresh-1" {
		t.Fatalf("b sees %+v, want refresh-1", got)
	}

	b.SaveTokens(ctx, TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})
	if got := a.Tokens(ctx); got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
		t.Fatalf("a still sees %+v after b rotated", got)
	}

	b.Delete(ctx, KeyRefreshToken)
	if _, ok := a.Get(ctx, KeyRefreshToken); ok {
		t.Fatalf("a must see the delete made by b")
	}
}

func TestMemoryStoreKeepsMirrorAuthoritative(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	s := New(mem, Options{})
	if s.ReadThrough() {
		t.Fatalf("memory store must not read through")
	}
	s.Set(ctx, KeyAccessToken, "mine")
	_ = mem.Set(ctx, string(KeyAccessToken), "theirs")
	if v, _ := s.Get(ctx, KeyAccessToken); v != "mine" {
		t.Fatalf("expected mirror value, got %q", v)
	}

	forced := New(mem, Options{ReadThrough: true})
	if v, _ := forced.Get(ctx, KeyAccessToken); v != "theirs" {
		t.Fatalf("expected backend value with ReadThrough, got %q", v)
	}
}
