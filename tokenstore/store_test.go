package tokenstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type failingBackend struct {
	failGet, failSet, failDelete bool
	inner                        *MemoryBackend
}

var errBackendDown = errors.New("backend down")

func (f *failingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBackendDown
	}
	return f.inner.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackendDown
	}
	return f.inner.Set(ctx, key, value)
}

func (f *failingBackend) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errBackendDown
	}
	return f.inner.Delete(ctx, key)
}

func TestStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil, Options{})

	if _, ok := s.Get(ctx, KeyAccessToken); ok {
		t.Fatalf("expected absent access token")
	}
	s.Set(ctx, KeyAccessToken, "a1")
	if v, ok := s.Get(ctx, KeyAccessToken); !ok || v != "a1" {
		t.Fatalf("expected a1, got %q ok=%v", v, ok)
	}
	s.Delete(ctx, KeyAccessToken)
	if _, ok := s.Get(ctx, KeyAccessToken); ok {
		t.Fatalf("expected delete to remove entry")
	}
}

func TestStoreSaveTokensWritesHalvesIndependently(t *testing.T) {
	ctx := context.Background()
	s := New(nil, Options{})

	s.SaveTokens(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	s.SaveTokens(ctx, TokenPair{AccessToken: "a2"})

	got := s.Tokens(ctx)
	if got.AccessToken != "a2" || got.RefreshToken != "r1" {
		t.Fatalf("unexpected pair: %+v", got)
	}
}

func TestStoreClearAllRemovesFourEntries(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	s := New(mem, Options{})
	for _, k := range AllKeys {
		s.Set(ctx, k, "v-"+string(k))
	}
	if mem.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", mem.Len())
	}

	s.ClearAll(ctx)

	if mem.Len() != 0 {
		t.Fatalf("expected backend empty after ClearAll, got %d", mem.Len())
	}
	for _, k := range AllKeys {
		if _, ok := s.Get(ctx, k); ok {
			t.Fatalf("expected %s absent", k)
		}
	}
}

func TestStoreWriteFailureKeepsMirrorAndReports(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{failSet: true, inner: NewMemoryBackend()}
	var failures atomic.Int32
	var lastErr error
	s := New(backend, Options{OnFailure: func(err error) {
		failures.Add(1)
		lastErr = err
	}})

	s.Set(ctx, KeyRefreshToken, "r1")

	if v, ok := s.Get(ctx, KeyRefreshToken); !ok || v != "r1" {
		t.Fatalf("mirror must stay authoritative, got %q ok=%v", v, ok)
	}
	if failures.Load() != 1 {
		t.Fatalf("expected one reported failure, got %d", failures.Load())
	}
	if !errors.Is(lastErr, ErrStorage) || !errors.Is(lastErr, errBackendDown) {
		t.Fatalf("expected storage error wrapping backend cause, got %v", lastErr)
	}
	var se *StorageError
	if !errors.As(lastErr, &se) || se.Op != "set" || se.Key != string(KeyRefreshToken) {
		t.Fatalf("unexpected storage error detail: %#v", lastErr)
	}
}

func TestStoreReadFailureYieldsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryBackend()
	_ = inner.Set(ctx, string(KeyUserData), "{}")
	backend := &failingBackend{failGet: true, inner: inner}
	var failures atomic.Int32
	s := New(backend, Options{OnFailure: func(error) { failures.Add(1) }})

	if _, ok := s.Get(ctx, KeyUserData); ok {
		t.Fatalf("read failure must yield absent")
	}
	if failures.Load() != 1 {
		t.Fatalf("expected failure to be reported once, got %d", failures.Load())
	}

	backend.failGet = false
	if v, ok := s.Get(ctx, KeyUserData); !ok || v != "{}" {
		t.Fatalf("failed read must not be cached, got %q ok=%v", v, ok)
	}
}

func TestStoreInvalidateRereadsBackend(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	s := New(mem, Options{})
	s.Set(ctx, KeyAccessToken, "a1")

	_ = mem.Set(ctx, string(KeyAccessToken), "rotated-elsewhere")
	if v, _ := s.Get(ctx, KeyAccessToken); v != "a1" {
		t.Fatalf("mirror should shadow backend until invalidated, got %q", v)
	}
	s.Invalidate()
	if v, _ := s.Get(ctx, KeyAccessToken); v != "rotated-elsewhere" {
		t.Fatalf("expected backend value after Invalidate, got %q", v)
	}
}

func TestStoreSetEmptyDeletes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryBackend()
	s := New(mem, Options{})
	s.Set(ctx, KeyDeviceID, "ios-1-abc")
	s.Set(ctx, KeyDeviceID, "")
	if mem.Len() != 0 {
		t.Fatalf("expected empty set to delete")
	}
}
