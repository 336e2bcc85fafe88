package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/portalAuth/events"
)

// DefaultStaleTime matches the portal client's query freshness window.
const DefaultStaleTime = 5 * time.Minute

// UserKey is the cache key for the signed-in user's profile.
const UserKey = "user"

// Options configures a Cache.
type Options struct {
	StaleTime time.Duration
	// Bus receives loading transitions. Nil disables loading events.
	Bus *events.Bus
	Now func() time.Time
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// Cache is safe for concurrent use.
type Cache struct {
	staleTime time.Duration
	bus       *events.Bus
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	gen     map[string]uint64

	group singleflight.Group

	trackMu     sync.Mutex
	inflight    int
	emitMu      sync.Mutex
	lastEmitted bool
	emittedOnce bool
}

// New returns an empty cache.
func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		staleTime: opts.StaleTime,
		bus:       opts.Bus,
		now:       opts.Now,
		entries:   make(map[string]*entry),
		gen:       make(map[string]uint64),
	}
}

// Get returns the cached value for key and whether it is still fresh.
func (c *Cache) Get(key string) (value any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, c.freshLocked(e), true
}

// Set stores value under key as freshly fetched.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = &entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Fetch returns the fresh cached value for key or calls fn. Concurrent
// fetches of one key share a single fn call. A failed fetch keeps the
// previous value.
func (c *Cache) Fetch(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.freshLocked(e) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	startGen := c.gen[key]
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// An invalidation during the fetch means the result may be outdated.
	c.entries[key] = &entry{value: v, fetchedAt: c.now(), stale: c.gen[key] != startGen}
	c.mu.Unlock()
	return v, nil
}

// FetchAs is a typed wrapper around Cache.Fetch.
func FetchAs[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) { return fn(ctx) })
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Invalidate marks every entry at or below each key as stale and returns how
// many entries were affected.
func (c *Cache) Invalidate(keys ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range keys {
		k = strings.Trim(k, "/")
		if k == "" {
			continue
		}
		c.gen[k]++
		for name, e := range c.entries {
			if name == k || strings.HasPrefix(name, k+"/") {
				if name != k {
					c.gen[name]++
				}
				e.stale = true
				n++
			}
		}
	}
	return n
}

// InvalidateAll marks every entry stale.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, e := range c.entries {
		c.gen[name]++
		e.stale = true
	}
	return len(c.entries)
}

// Remove drops entries at or below each key.
func (c *Cache) Remove(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		for name := range c.entries {
			if name == k || strings.HasPrefix(name, k+"/") {
				delete(c.entries, name)
			}
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) freshLocked(e *entry) bool {
	return !e.stale && c.now().Sub(e.fetchedAt) < c.staleTime
}
