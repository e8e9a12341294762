package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalState(t *testing.T) {
	state := map[string]any{
		"nonce":    "abc123",
		"provider": "google",
		"extras": map[string]any{
			"scope":  "drive.readonly",
			"prompt": "consent",
		},
	}

	got, err := CanonicalState(state)
	require.NoError(t, err)

	// Keys come out sorted at every nesting level, so the serialized form is
	// deterministic and usable as an equality key.
	assert.Equal(t,
		`{"extras":{"prompt":"consent","scope":"drive.readonly"},"nonce":"abc123","provider":"google"}`,
		string(got))
}

func TestCanonicalStateIgnoresConstructionOrder(t *testing.T) {
	first := map[string]any{}
	first["b"] = "two"
	first["a"] = "one"
	first["nested"] = map[string]any{"y": 2, "x": 1}

	second := map[string]any{}
	second["nested"] = map[string]any{"x": 1, "y": 2}
	second["a"] = "one"
	second["b"] = "two"

	firstBytes, err := CanonicalState(first)
	require.NoError(t, err)
	secondBytes, err := CanonicalState(second)
	require.NoError(t, err)

	assert.Equal(t, firstBytes, secondBytes)
}

func TestCanonicalStateNil(t *testing.T) {
	got, err := CanonicalState(nil)
	require.NoError(t, err)
	assert.Nil(t, got, "nil state should stay nil, not become JSON null")
}

func TestCanonicalStateUnserializableValue(t *testing.T) {
	got, err := CanonicalState(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestCanonicalPayload(t *testing.T) {
	got, err := CanonicalPayload(map[string]any{
		"refresh_token": "1//refresh",
		"access_token":  "ya29.token",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"ya29.token","refresh_token":"1//refresh"}`, string(got))

	empty, err := CanonicalPayload(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
