package portalAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalAuth/events"
	"github.com/MrEthical07/portalAuth/notify"
	"github.com/MrEthical07/portalAuth/querycache"
)

// RefreshOptions re-exports the bus payload options.
type RefreshOptions = events.RefreshOptions

// RefreshService re-fetches the profile and invalidates cached data on
// demand. Failures are reported through the notifier and OnError, never
// returned.
type RefreshService struct {
	engine *Engine
}

// RefreshUserProfile fetches GET /users/me, replaces the session user and
// invalidates user cache entries.
func (s *RefreshService) RefreshUserProfile(ctx context.Context, opts RefreshOptions) bool {
	e := s.engine
	res := e.flows.FetchProfile(ctx)
	if res.Err != nil {
		e.logger.InfoContext(ctx, "profile refresh failed", "error", res.Err)
		e.emitAudit(ctx, auditEventProfileRefresh, false, e.User(), res.Err, nil)
		if opts.ShowToast {
			e.notifier.Notify(ctx, notify.Error("Refresh Failed", "Failed to refresh profile"))
		}
		if opts.OnError != nil {
			opts.OnError(res.Err)
		}
		return false
	}

	e.cache.Invalidate(querycache.UserKey)
	e.emitAudit(ctx, auditEventProfileRefresh, true, res.User, nil, nil)
	if opts.ShowToast {
		e.notifier.Notify(ctx, notify.Success("Refreshed", "Profile refreshed successfully"))
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	return true
}

// RefreshQueries invalidates the named cache entries only.
func (s *RefreshService) RefreshQueries(ctx context.Context, keys []string, opts RefreshOptions) {
	e := s.engine
	if len(keys) == 0 {
		err := errors.New("no query keys given")
		if opts.ShowToast {
			e.notifier.Notify(ctx, notify.Error("Refresh Failed", "Failed to refresh data"))
		}
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return
	}
	e.cache.Invalidate(keys...)
	if opts.ShowToast {
		e.notifier.Notify(ctx, notify.Success("Refreshed", "Data refreshed successfully"))
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
}

// RefreshAllData invalidates every cache entry and refreshes the profile
// without a toast of its own.
func (s *RefreshService) RefreshAllData(ctx context.Context, opts RefreshOptions) {
	e := s.engine
	e.cache.InvalidateAll()
	s.RefreshUserProfile(ctx, RefreshOptions{})
	if opts.ShowToast {
		e.notifier.Notify(ctx, notify.Success("Refreshed", "All data refreshed successfully"))
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
}

// TriggerGlobalRefresh emits a global-refresh-requested event. Subscribers,
// including the query cache, run before it returns.
func (s *RefreshService) TriggerGlobalRefresh(scope events.RefreshScope, opts RefreshOptions) {
	s.engine.bus.GlobalRefresh.Emit(events.GlobalRefreshRequest{Scope: scope, Options: opts})
}
