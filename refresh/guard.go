package refresh

import (
	"context"
	"sync"
	"time"
)

// GuardState is a point-in-time copy of a [Guard].
type GuardState struct {
	InProgress    bool
	LastRefreshAt time.Time
}

// Guard is a mutual-exclusion and throttle primitive for refresh attempts.
//
// The zero value is ready to use. A Guard must not be copied after first use.
type Guard struct {
	mu            sync.Mutex
	inProgress    bool
	lastRefreshAt time.Time
	// released is closed by the Release that ends the current in-flight window.
	released chan struct{}
	// succeeded reports the outcome of the most recently released window.
	succeeded bool
}

// NewGuard returns an idle guard that has never refreshed.
func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire marks a refresh as in flight and returns true iff no refresh is
// in flight and now-LastRefreshAt >= minInterval. On false nothing changes.
func (g *Guard) TryAcquire(now time.Time, minInterval time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inProgress {
		return false
	}
	if !g.lastRefreshAt.IsZero() && now.Sub(g.lastRefreshAt) < minInterval {
		return false
	}

	g.inProgress = true
	g.released = make(chan struct{})
	return true
}

// Release ends the in-flight window started by a successful TryAcquire.
// LastRefreshAt advances to now unless it is already later.
func (g *Guard) Release(now time.Time) {
	g.ReleaseWithResult(now, false)
}

// ReleaseWithResult is Release that also records whether the exchange
// succeeded, for callers blocked in [Guard.Wait].
func (g *Guard) ReleaseWithResult(now time.Time, succeeded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.After(g.lastRefreshAt) {
		g.lastRefreshAt = now
	}
	g.succeeded = succeeded
	if !g.inProgress {
		return
	}
	g.inProgress = false
	if g.released != nil {
		close(g.released)
		g.released = nil
	}
}

// Reset returns the guard to its initial state. Waiters of an in-flight window
// are woken and observe a failed refresh.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inProgress = false
	g.lastRefreshAt = time.Time{}
	g.succeeded = false
	if g.released != nil {
		close(g.released)
		g.released = nil
	}
}

// State returns a copy of the guard state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return GuardState{
		InProgress:    g.inProgress,
		LastRefreshAt: g.lastRefreshAt,
	}
}

// Wait blocks until the in-flight refresh is released and reports whether it
// succeeded. It returns (false, false) immediately when nothing is in flight.
// The second result reports whether there was anything to wait for.
func (g *Guard) Wait(ctx context.Context) (succeeded bool, waited bool) {
	g.mu.Lock()
	ch := g.released
	g.mu.Unlock()

	if ch == nil {
		return false, false
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return false, true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.succeeded, true
}
