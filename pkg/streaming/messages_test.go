package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flickshot/flickshot/pkg/core"
)

func TestEncodeUpdate(t *testing.T) {
	data, err := EncodeUpdate(core.UpdatePayload{
		ID:       "p1",
		Yaw:      1.5,
		Position: core.Vec3{X: 1, Y: 2, Z: 3},
		TargetsInfo: []core.TargetInfo{
			{X: 1, Y: 2, Z: -8, Shootable: true},
		},
	})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"update"`, string(raw["type"]))

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw["data"], &body))
	assert.Equal(t, "p1", body["id"])
	assert.NotContains(t, body, "roomX")
	assert.NotContains(t, body, "roomZ")
	assert.Len(t, body["targetsInfo"], 1)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"playerLeft","id":"p2"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePlayerLeft, env.Type)
	assert.Equal(t, "p2", env.ID)

	env, err = DecodeEnvelope([]byte(`{"type":"error"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeError, env.Type)
	assert.Empty(t, env.Message)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for name, frame := range map[string]string{
		"empty":   ``,
		"garbage": `{not json`,
		"no type": `{"id":"p2"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(frame))
			assert.Error(t, err)
		})
	}
}

func TestDecodePlayer_PartialFields(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"playerUpdate","data":{"id":"p2","yaw":0.5}}`))
	require.NoError(t, err)

	p, err := DecodePlayer(env)
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
	require.NotNil(t, p.Yaw)
	assert.Equal(t, 0.5, *p.Yaw)
	assert.Nil(t, p.Pitch)
	assert.Nil(t, p.Position)
	assert.Nil(t, p.TargetsInfo)
}

func TestDecodePlayer_MissingID(t *testing.T) {
	_, err := DecodePlayer(Envelope{Type: TypeAssigned, Data: json.RawMessage(`{"yaw":1}`)})
	assert.Error(t, err)

	_, err = DecodePlayer(Envelope{Type: TypeAssigned})
	assert.Error(t, err)
}
