package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDrainTimeout bounds how long Close keeps delivering buffered events.
const DefaultDrainTimeout = 2 * time.Second

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking Emit on a full buffer.
	DropIfFull bool
	// DrainTimeout caps delivery after Close; events still buffered then
	// count as dropped. Zero uses DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Dispatcher forwards events to a sink from one goroutine, in emit order.
// A sink that panics loses that event only.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	stop chan struct{}
	done chan struct{}

	dropped   atomic.Uint64
	failed    atomic.Uint64
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	deadline := time.NewTimer(d.cfg.DrainTimeout)
	defer deadline.Stop()
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-deadline.C:
			d.dropped.Add(uint64(len(d.ch)))
			return
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. A zero Timestamp is set to the current time. Without
// DropIfFull, Emit blocks until there is room, ctx ends or Close runs.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events and drains the buffer into the sink, up to
// DrainTimeout. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.done
	})
}

// Pending returns the number of buffered, undelivered events.
func (d *Dispatcher) Pending() int {
	if d == nil {
		return 0
	}
	return len(d.ch)
}

// Dropped counts events lost to a full buffer, a cancelled Emit or the
// drain deadline.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events whose sink panicked.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

// DrainTimeout returns the effective bound on delivery after Close.
func (d *Dispatcher) DrainTimeout() time.Duration {
	if d == nil {
		return 0
	}
	return d.cfg.DrainTimeout
}
