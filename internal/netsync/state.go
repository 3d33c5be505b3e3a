package netsync

import "fmt"

// ConnState is the lifecycle state of the sync connection.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in status files and logs.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (s *ConnState) UnmarshalText(b []byte) error {
	for _, c := range []ConnState{Disconnected, Connecting, Connected} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", b)
}
