package querycache

import "github.com/MrEthical07/portalAuth/events"

// Listen subscribes the cache to global refresh requests on bus. The
// returned token unsubscribes it.
func (c *Cache) Listen(bus *events.Bus) events.Token {
	return bus.GlobalRefresh.Subscribe(func(req events.GlobalRefreshRequest) {
		c.ApplyRefresh(req)
	})
}

// ApplyRefresh invalidates the entries covered by req.
func (c *Cache) ApplyRefresh(req events.GlobalRefreshRequest) int {
	switch req.Scope {
	case events.ScopeUserProfile:
		return c.Invalidate(UserKey)
	case events.ScopeSpecificQuery:
		return c.Invalidate(req.Options.QueryKeys...)
	case events.ScopeCurrentScreen:
		if len(req.Options.QueryKeys) > 0 {
			return c.Invalidate(req.Options.QueryKeys...)
		}
		return c.InvalidateAll()
	case events.ScopeAllData:
		return c.InvalidateAll()
	default:
		return 0
	}
}
