// internal/truco/action_test.go
package truco

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionJSON(t *testing.T) {
	b, err := json.Marshal(PlayCard(2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"play_card","card_index":2}`, string(b))

	b, err = json.Marshal(SingRealEnvido())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"sing_real_envido"}`, string(b))

	var a Action
	require.NoError(t, json.Unmarshal([]byte(`{"type":"play_card","card_index":0}`), &a))
	assert.Equal(t, PlayCard(0), a)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"go_to_deck","card_index":5}`), &a))
	assert.Equal(t, GoToDeck(), a, "card_index is ignored outside play_card")
}

func TestActionJSONRejectsUnknown(t *testing.T) {
	var a Action
	assert.Error(t, json.Unmarshal([]byte(`{"type":"sing_flor"}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"play_card"}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &a))
}

func TestSingKindsMapToCalls(t *testing.T) {
	for kind, call := range singCalls {
		assert.Equal(t, "sing_"+string(call), string(kind))
		assert.True(t, kind.Valid())
	}
	assert.False(t, ActionKind("sing_flor").Valid())
}
