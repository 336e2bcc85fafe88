package tokenstore

import (
	"context"
	"log/slog"
	"sync"
)

// Options configures a Store.
type Options struct {
	// Logger receives read/write failure records. Values are never logged.
	Logger *slog.Logger
	// OnFailure is called once per failed backend operation.
	OnFailure func(err error)
	// ReadThrough sends every Get to the backend and keeps the mirror only
	// as the answer for failed reads. Backends reporting Shared() enable
	// it regardless.
	ReadThrough bool
}

// SharedBackend is implemented by backends other processes may write to.
type SharedBackend interface {
	Shared() bool
}

type mirrorEntry struct {
	value   string
	present bool
}

// Store is the credential store used by the transport and the engine.
type Store struct {
	backend     Backend
	logger      *slog.Logger
	onFailure   func(error)
	readThrough bool

	mu     sync.RWMutex
	mirror map[Key]mirrorEntry
}

// New wraps backend. A nil backend selects a fresh MemoryBackend.
func New(backend Backend, opts Options) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	readThrough := opts.ReadThrough
	if sb, ok := backend.(SharedBackend); ok && sb.Shared() {
		readThrough = true
	}
	return &Store{
		backend:     backend,
		logger:      logger,
		onFailure:   opts.OnFailure,
		readThrough: readThrough,
		mirror:      make(map[Key]mirrorEntry, len(AllKeys)),
	}
}

// Backend returns the underlying durable backend.
func (s *Store) Backend() Backend { return s.backend }

// ReadThrough reports whether reads bypass the mirror.
func (s *Store) ReadThrough() bool { return s.readThrough }

// Get returns the value for key, or ok=false when absent or unreadable.
func (s *Store) Get(ctx context.Context, key Key) (string, bool) {
	if s.readThrough {
		return s.getThrough(ctx, key)
	}
	s.mu.RLock()
	e, cached := s.mirror[key]
	s.mu.RUnlock()
	if cached {
		return e.value, e.present
	}

	v, ok, err := s.backend.Get(ctx, string(key))
	if err != nil {
		s.fail(ctx, storageErr("get", string(key), err))
		return "", false
	}

	s.mu.Lock()
	// A concurrent Set wins over the value we just read.
	if cur, exists := s.mirror[key]; exists {
		s.mu.Unlock()
		return cur.value, cur.present
	}
	s.mirror[key] = mirrorEntry{value: v, present: ok}
	s.mu.Unlock()
	return v, ok
}

// getThrough reads the backend first so values rotated by another process
// are seen. A failed read falls back to the last value this process knew.
func (s *Store) getThrough(ctx context.Context, key Key) (string, bool) {
	v, ok, err := s.backend.Get(ctx, string(key))
	if err != nil {
		s.fail(ctx, storageErr("get", string(key), err))
		s.mu.RLock()
		e := s.mirror[key]
		s.mu.RUnlock()
		return e.value, e.present
	}
	s.mu.Lock()
	s.mirror[key] = mirrorEntry{value: v, present: ok}
	s.mu.Unlock()
	return v, ok
}

// Set stores value under key. An empty value deletes the entry.
func (s *Store) Set(ctx context.Context, key Key, value string) {
	if value == "" {
		s.Delete(ctx, key)
		return
	}
	s.mu.Lock()
	s.mirror[key] = mirrorEntry{value: value, present: true}
	s.mu.Unlock()

	if err := s.backend.Set(ctx, string(key), value); err != nil {
		s.fail(ctx, storageErr("set", string(key), err))
	}
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key Key) {
	s.mu.Lock()
	s.mirror[key] = mirrorEntry{}
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, string(key)); err != nil {
		s.fail(ctx, storageErr("delete", string(key), err))
	}
}

// Clear removes every key in keys.
func (s *Store) Clear(ctx context.Context, keys ...Key) {
	for _, k := range keys {
		s.Delete(ctx, k)
	}
}

// ClearAll removes all four credential entries.
func (s *Store) ClearAll(ctx context.Context) { s.Clear(ctx, AllKeys...) }

// Tokens returns the current token pair.
func (s *Store) Tokens(ctx context.Context) TokenPair {
	access, _ := s.Get(ctx, KeyAccessToken)
	refresh, _ := s.Get(ctx, KeyRefreshToken)
	return TokenPair{AccessToken: access, RefreshToken: refresh}
}

// SaveTokens persists each present half of p. Absent halves are left as is.
func (s *Store) SaveTokens(ctx context.Context, p TokenPair) {
	if p.AccessToken != "" {
		s.Set(ctx, KeyAccessToken, p.AccessToken)
	}
	if p.RefreshToken != "" {
		s.Set(ctx, KeyRefreshToken, p.RefreshToken)
	}
}

// Invalidate drops the in-process mirror so the next reads hit the backend.
// Use it when another process may have rotated the shared credentials.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.mirror = make(map[Key]mirrorEntry, len(AllKeys))
	s.mu.Unlock()
}

func (s *Store) fail(ctx context.Context, err error) {
	s.logger.WarnContext(ctx, "token store backend failure", "error", err)
	if s.onFailure != nil {
		s.onFailure(err)
	}
}
