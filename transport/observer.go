package transport

import "time"

// Tracker is notified around every network attempt, including replays.
type Tracker interface {
	RequestStarted()
	RequestFinished()
}

// Observer receives transport and coordinator measurements.
type Observer interface {
	// AttemptFinished is called once per network attempt. status is 0 when
	// no response was received.
	AttemptFinished(status int, elapsed time.Duration)
	// Unauthorized is called for every 401 eligible for refresh handling.
	Unauthorized()
	// RefreshThrottled is called when the guard declined a refresh.
	RefreshThrottled()
	// Replayed is called after a post-refresh replay.
	Replayed(ok bool)
}

// NopObserver ignores every measurement.
type NopObserver struct{}

func (NopObserver) AttemptFinished(int, time.Duration) {}
func (NopObserver) Unauthorized()                     {}
func (NopObserver) RefreshThrottled()                 {}
func (NopObserver) Replayed(bool)                     {}

type nopTracker struct{}

func (nopTracker) RequestStarted()  {}
func (nopTracker) RequestFinished() {}
