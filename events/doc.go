// Package events provides the process-wide typed pub/sub used to broadcast
// loading-state changes and global refresh requests.
//
// # Delivery contract
//
// [Channel.Emit] is synchronous: every handler subscribed at the moment of the
// call runs, in subscription order, before Emit returns. There is no queueing,
// no backpressure, and no replay beyond [Channel.Last].
//
// # Architecture boundaries
//
// A [Bus] is owned by one composition root (the Engine) and passed by
// reference. This package has no global registry.
//
// # What this package must NOT do
//
//   - Spawn goroutines or buffer events.
//   - Import portalAuth or any sibling package.
package events
