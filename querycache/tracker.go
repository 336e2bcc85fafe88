package querycache

// RequestStarted records one in-flight request.
func (c *Cache) RequestStarted() { c.track(1) }

// RequestFinished records the end of one in-flight request.
func (c *Cache) RequestFinished() { c.track(-1) }

// InFlight returns the number of requests currently in flight.
func (c *Cache) InFlight() int {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()
	return c.inflight
}

// IsLoading reports whether any request is in flight.
func (c *Cache) IsLoading() bool { return c.InFlight() > 0 }

// track updates the counter and emits on the loading channel when the
// loading state flips. Emission is serialized and re-checks the current
// state, so the last value delivered always matches the counter.
// Loading handlers must not issue tracked requests synchronously.
func (c *Cache) track(delta int) {
	c.trackMu.Lock()
	before := c.inflight > 0
	c.inflight += delta
	if c.inflight < 0 {
		c.inflight = 0
	}
	after := c.inflight > 0
	c.trackMu.Unlock()

	if before == after || c.bus == nil {
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	current := c.IsLoading()
	if c.emittedOnce && c.lastEmitted == current {
		return
	}
	c.lastEmitted = current
	c.emittedOnce = true
	c.bus.Loading.Emit(current)
}
