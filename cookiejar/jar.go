package cookiejar

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/portalAuth/tokenstore"
)

// PersistKey is the backend key the jar is saved under.
const PersistKey = "cookies"

type entry struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// Jar is a concurrency-safe cookie mirror.
type Jar struct {
	mu      sync.RWMutex
	entries []entry
	now     func() time.Time

	backend tokenstore.Backend
	logger  *slog.Logger
}

// Option configures a Jar.
type Option func(*Jar)

// WithBackend persists the jar after every change.
func WithBackend(b tokenstore.Backend) Option { return func(j *Jar) { j.backend = b } }

// WithLogger sets the logger for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(j *Jar) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) {
		if now != nil {
			j.now = now
		}
	}
}

// New returns an empty jar.
func New(opts ...Option) *Jar {
	j := &Jar{now: time.Now, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// SetFromHeader mirrors every Set-Cookie in h. A cookie that is already
// expired, or carries Max-Age<0, removes the entry. It reports whether the
// jar changed.
func (j *Jar) SetFromHeader(ctx context.Context, h http.Header) bool {
	cookies := (&http.Response{Header: h}).Cookies()
	if len(cookies) == 0 {
		return false
	}

	now := j.now()
	j.mu.Lock()
	changed := false
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			changed = j.removeLocked(c.Name) || changed
			continue
		}
		e := entry{Name: c.Name, Value: c.Value}
		if c.MaxAge > 0 {
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		} else if !c.Expires.IsZero() {
			e.Expires = c.Expires
		}
		changed = j.upsertLocked(e) || changed
	}
	snapshot := j.snapshotLocked()
	j.mu.Unlock()

	if changed {
		j.persist(ctx, snapshot)
	}
	return changed
}

// Header returns "name=value; name2=value2" in first-seen order, skipping
// expired entries. Empty when the jar is empty.
func (j *Jar) Header() string {
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()

	var b strings.Builder
	for _, e := range j.entries {
		if !e.Expires.IsZero() && !e.Expires.After(now) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Name)
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	return b.String()
}

// Cookies returns the live entries as http.Cookie values.
func (j *Jar) Cookies() []*http.Cookie {
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*http.Cookie, 0, len(j.entries))
	for _, e := range j.entries {
		if !e.Expires.IsZero() && !e.Expires.After(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: e.Name, Value: e.Value, Expires: e.Expires})
	}
	return out
}

// Len returns the number of stored entries, expired ones included.
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Clear empties the jar and its persisted copy.
func (j *Jar) Clear(ctx context.Context) {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()

	if j.backend == nil {
		return
	}
	if err := j.backend.Delete(ctx, PersistKey); err != nil {
		j.logger.WarnContext(ctx, "cookie jar delete failed", "error", err)
	}
}

// Load replaces the jar content with the persisted copy, if any.
func (j *Jar) Load(ctx context.Context) error {
	if j.backend == nil {
		return nil
	}
	raw, ok, err := j.backend.Get(ctx, PersistKey)
	if err != nil || !ok {
		return err
	}
	var entries []entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		j.logger.WarnContext(ctx, "discarding unreadable persisted cookies", "error", err)
		return nil
	}

	now := j.now()
	live := entries[:0]
	for _, e := range entries {
		if e.Name == "" || (!e.Expires.IsZero() && !e.Expires.After(now)) {
			continue
		}
		live = append(live, e)
	}
	j.mu.Lock()
	j.entries = live
	j.mu.Unlock()
	return nil
}

func (j *Jar) upsertLocked(e entry) bool {
	for i := range j.entries {
		if j.entries[i].Name == e.Name {
			if j.entries[i] == e {
				return false
			}
			j.entries[i] = e
			return true
		}
	}
	j.entries = append(j.entries, e)
	return true
}

func (j *Jar) removeLocked(name string) bool {
	for i := range j.entries {
		if j.entries[i].Name == name {
			j.entries = append(j.entries[:i], j.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (j *Jar) snapshotLocked() []entry {
	return append([]entry(nil), j.entries...)
}

func (j *Jar) persist(ctx context.Context, entries []entry) {
	if j.backend == nil {
		return
	}
	if len(entries) == 0 {
		if err := j.backend.Delete(ctx, PersistKey); err != nil {
			j.logger.WarnContext(ctx, "cookie jar delete failed", "error", err)
		}
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := j.backend.Set(ctx, PersistKey, string(data)); err != nil {
		j.logger.WarnContext(ctx, "cookie jar persist failed", "error", err)
	}
}
