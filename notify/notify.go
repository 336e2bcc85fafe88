// Package notify presents user-facing notifications (toasts) for session
// events. The engine only depends on [Notifier]; UI bindings supply their own.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindError   Kind = "error"
)

// Message is one notification.
type Message struct {
	Kind    Kind
	Title   string
	Message string
}

// Notifier shows notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, m Message)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, m Message)

func (f Func) Notify(ctx context.Context, m Message) { f(ctx, m) }

// NoOp drops every notification.
type NoOp struct{}

func (NoOp) Notify(context.Context, Message) {}

// Log writes notifications to a slog logger. Errors log at warn level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, m Message) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if m.Kind == KindError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, m.Title, "kind", string(m.Kind), "message", m.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(_ context.Context, m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

// Messages returns a copy of what was recorded.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Success is shorthand for a success message.
func Success(title, msg string) Message { return Message{Kind: KindSuccess, Title: title, Message: msg} }

// Info is shorthand for an info message.
func Info(title, msg string) Message { return Message{Kind: KindInfo, Title: title, Message: msg} }

// Error is shorthand for an error message.
func Error(title, msg string) Message { return Message{Kind: KindError, Title: title, Message: msg} }
