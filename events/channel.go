package events

import "sync"

// Token identifies one subscription. The zero Token is never issued.
type Token struct {
	channel string
	id      uint64
}

// Channel returns the name of the channel the token belongs to.
func (t Token) Channel() string { return t.channel }

// Valid reports whether the token was issued by a channel.
func (t Token) Valid() bool { return t.id != 0 }

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Channel is a named, typed, latest-value broadcast topic.
type Channel[T any] struct {
	name string

	mu      sync.Mutex
	nextID  uint64
	subs    []subscription[T]
	last    T
	emitted bool
}

// NewChannel returns an empty channel with the given name.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string { return c.name }

// Subscribe registers fn and returns a token for [Channel.Unsubscribe].
// A nil fn is ignored and yields the zero Token.
func (c *Channel[T]) Subscribe(fn func(T)) Token {
	if fn == nil {
		return Token{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.subs = append(c.subs, subscription[T]{id: c.nextID, fn: fn})
	return Token{channel: c.name, id: c.nextID}
}

// Unsubscribe removes the subscription. It reports whether one was removed.
func (c *Channel[T]) Unsubscribe(tok Token) bool {
	if tok.channel != c.name || tok.id == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s.id == tok.id {
			next := make([]subscription[T], 0, len(c.subs)-1)
			next = append(next, c.subs[:i]...)
			next = append(next, c.subs[i+1:]...)
			c.subs = next
			return true
		}
	}
	return false
}

// Emit records v as the latest value and invokes every current handler in
// subscription order. Handlers run outside the channel lock, so they may
// subscribe, unsubscribe or emit.
func (c *Channel[T]) Emit(v T) {
	c.mu.Lock()
	c.last = v
	c.emitted = true
	subs := c.subs
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Last returns the most recently emitted value and whether any value was
// emitted.
func (c *Channel[T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.emitted
}

// Len returns the number of current subscribers.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
