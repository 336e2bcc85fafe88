package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/portalAuth/refresh"
)

// DefaultMinRefreshInterval is the minimum spacing between refresh attempts.
const DefaultMinRefreshInterval = 60 * time.Second

// Refresher performs the token exchange and the forced logout that follows
// a failed exchange. ExchangeRefresh must not touch the guard.
type Refresher interface {
	ExchangeRefresh(ctx context.Context) error
	ForceLogout(ctx context.Context)
}

// SiblingPolicy decides what a 401 does when another refresh holds the guard
// or the throttle window is still open.
type SiblingPolicy uint8

const (
	// SiblingFailFast returns the original 401 unchanged.
	SiblingFailFast SiblingPolicy = iota
	// SiblingWaitAndReplay waits for an in-flight refresh and replays once
	// when it succeeded or the access token changed since the request was
	// sent. It never starts a second refresh.
	SiblingWaitAndReplay
)

func (p SiblingPolicy) String() string {
	switch p {
	case SiblingFailFast:
		return "fail-fast"
	case SiblingWaitAndReplay:
		return "wait-and-replay"
	default:
		return "unknown"
	}
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	MinInterval time.Duration
	Policy      SiblingPolicy
	Now         func() time.Time
	Observer    Observer
	Logger      *slog.Logger
}

// Coordinator turns a 401 into at most one refresh and one replay.
type Coordinator struct {
	guard     *refresh.Guard
	refresher Refresher
	opts      CoordinatorOptions
}

// NewCoordinator wires guard and refresher.
func NewCoordinator(guard *refresh.Guard, refresher Refresher, opts CoordinatorOptions) *Coordinator {
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinRefreshInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{guard: guard, refresher: refresher, opts: opts}
}

// Guard returns the shared refresh guard.
func (co *Coordinator) Guard() *refresh.Guard { return co.guard }

// Policy returns the sibling policy in effect.
func (co *Coordinator) Policy() SiblingPolicy { return co.opts.Policy }

// Handle resolves a 401 for req. original is the error of the failed
// attempt and is returned unchanged whenever no refresh is performed.
func (co *Coordinator) Handle(ctx context.Context, client *Client, req *Request, original error) (*Response, error) {
	if req.retried {
		return nil, original
	}

	if !co.guard.TryAcquire(co.opts.Now(), co.opts.MinInterval) {
		co.opts.Observer.RefreshThrottled()
		if co.opts.Policy == SiblingWaitAndReplay {
			return co.waitAndReplay(ctx, client, req, original)
		}
		co.opts.Logger.DebugContext(ctx, "refresh declined by guard", "path", req.Path)
		return nil, original
	}

	if err := co.refresher.ExchangeRefresh(ctx); err != nil {
		co.guard.ReleaseWithResult(co.opts.Now(), false)
		co.opts.Logger.InfoContext(ctx, "token refresh failed; forcing logout", "error", err)
		co.refresher.ForceLogout(ctx)
		return nil, err
	}
	co.guard.ReleaseWithResult(co.opts.Now(), true)

	req.retried = true
	resp, err := client.do(ctx, req)
	co.opts.Observer.Replayed(err == nil)
	return resp, err
}

func (co *Coordinator) waitAndReplay(ctx context.Context, client *Client, req *Request, original error) (*Response, error) {
	succeeded, waited := co.guard.Wait(ctx)
	if ctx.Err() != nil {
		return nil, original
	}
	current := client.CurrentAccessToken(ctx)
	rotated := current != "" && current != req.sentAccess
	if !(waited && succeeded) && !rotated {
		return nil, original
	}

	req.retried = true
	resp, err := client.do(ctx, req)
	co.opts.Observer.Replayed(err == nil)
	return resp, err
}
