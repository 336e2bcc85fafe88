package transport

import "strings"

// Channel is a bit set of credential channels attached to outgoing requests.
type Channel uint8

const (
	// ChannelBearer attaches "Authorization: Bearer <access token>".
	ChannelBearer Channel = 1 << iota
	// ChannelCookie attaches the cookie jar as a Cookie header.
	ChannelCookie

	// ChannelsAll enables both channels.
	ChannelsAll = ChannelBearer | ChannelCookie
)

// Has reports whether every bit of ch is set in c.
func (c Channel) Has(ch Channel) bool { return c&ch == ch && ch != 0 }

func (c Channel) String() string {
	var parts []string
	if c.Has(ChannelBearer) {
		parts = append(parts, "bearer")
	}
	if c.Has(ChannelCookie) {
		parts = append(parts, "cookie")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseChannels parses a comma or pipe separated list such as
// "bearer,cookie". An empty string yields ChannelsAll.
func ParseChannels(s string) (Channel, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return ChannelsAll, true
	}
	var c Channel
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "bearer":
			c |= ChannelBearer
		case "cookie":
			c |= ChannelCookie
		default:
			return 0, false
		}
	}
	return c, c != 0
}
