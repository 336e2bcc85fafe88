package events

const (
	// ChannelLoading carries the global "a request is in flight" flag.
	ChannelLoading = "loading-state-changed"
	// ChannelGlobalRefresh carries [GlobalRefreshRequest] payloads.
	ChannelGlobalRefresh = "global-refresh-requested"
)

// RefreshScope names what a global refresh should cover.
type RefreshScope string

const (
	ScopeUserProfile   RefreshScope = "user-profile"
	ScopeCurrentScreen RefreshScope = "current-screen"
	ScopeAllData       RefreshScope = "all-data"
	ScopeSpecificQuery RefreshScope = "specific-query"
)

// RefreshOptions travel with a global refresh request to listeners.
type RefreshOptions struct {
	ShowToast bool
	QueryKeys []string
	OnSuccess func()
	OnError   func(error)
}

// GlobalRefreshRequest is the payload of the global-refresh channel.
type GlobalRefreshRequest struct {
	Scope   RefreshScope
	Options RefreshOptions
}

// Covers reports whether a listener interested in scope should react.
// An all-data request covers every scope.
func (r GlobalRefreshRequest) Covers(scope RefreshScope) bool {
	return r.Scope == scope || r.Scope == ScopeAllData
}

// Bus owns the two application channels.
type Bus struct {
	Loading       *Channel[bool]
	GlobalRefresh *Channel[GlobalRefreshRequest]
}

// NewBus returns a bus with empty channels.
func NewBus() *Bus {
	return &Bus{
		Loading:       NewChannel[bool](ChannelLoading),
		GlobalRefresh: NewChannel[GlobalRefreshRequest](ChannelGlobalRefresh),
	}
}

// Unsubscribe routes tok to the channel that issued it.
func (b *Bus) Unsubscribe(tok Token) bool {
	if b == nil {
		return false
	}
	switch tok.Channel() {
	case ChannelLoading:
		return b.Loading.Unsubscribe(tok)
	case ChannelGlobalRefresh:
		return b.GlobalRefresh.Unsubscribe(tok)
	default:
		return false
	}
}
