package netsync

import (
	"net/url"
	"time"
)

// DefaultURL is used whenever the configured endpoint is empty or unusable.
const DefaultURL = "wss://sync.flickshot.gg/ws"

// Config tunes a Client.
type Config struct {
	URL           string
	DrainInterval time.Duration
	MaxUpdateHz   int
	// DepartureHold is how long updates for a departed player are ignored.
	// Zero selects the default; a negative value disables the hold.
	DepartureHold time.Duration
	SendBuffer    int
	ReadLimit     int64
	Reconnect     bool
	MaxReconnect  int
}

// DefaultConfig matches the protocol's expected cadence: a 50 ms drain and
// at most 20 applied updates per second per player.
func DefaultConfig() Config {
	return Config{
		URL:           DefaultURL,
		DrainInterval: 50 * time.Millisecond,
		MaxUpdateHz:   20,
		DepartureHold: 2 * time.Second,
		SendBuffer:    256,
		ReadLimit:     1 << 20,
		MaxReconnect:  10,
	}
}

// ResolveURL returns raw when it is an absolute ws or wss URL and DefaultURL
// otherwise. The second result reports whether the fallback was taken.
func ResolveURL(raw string) (string, bool) {
	if raw == "" {
		return DefaultURL, true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		return DefaultURL, true
	}
	return raw, false
}
