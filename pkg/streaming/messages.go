package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/flickshot/flickshot/pkg/core"
)

// Message type constants matching the sync protocol.
const (
	TypeUpdate       = "update"
	TypeAssigned     = "assigned"
	TypePlayerUpdate = "playerUpdate"
	TypePlayerLeft   = "playerLeft"
	TypeError        = "error"
)

// Envelope wraps every message on the sync socket. Which of the optional
// fields is set depends on Type.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      string          `json:"id,omitempty"`
	Message string          `json:"message,omitempty"`
}

// EncodeUpdate builds the outbound update envelope for the local player.
func EncodeUpdate(p core.UpdatePayload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeUpdate, err)
	}
	data, err := json.Marshal(Envelope{Type: TypeUpdate, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", TypeUpdate, err)
	}
	return data, nil
}

// DecodeEnvelope parses a raw frame. It only validates the outer shape.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("empty frame")
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return env, nil
}

// DecodePlayer extracts the PlayerCore carried by assigned and playerUpdate.
func DecodePlayer(env Envelope) (core.PlayerPatch, error) {
	var p core.PlayerPatch
	if len(env.Data) == 0 {
		return p, fmt.Errorf("empty data for type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s data: %w", env.Type, err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("%s data has no player id", env.Type)
	}
	return p, nil
}
