package format

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/marcelsud/chainhook/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() event.Event {
	return event.Event{
		ContractAddress: "0xAbC123",
		EventName:       "Transfer",
		BlockNumber:     19_000_000,
		TxHash:          "0xDeadBeef",
		LogIndex:        7,
		Args: map[string]any{
			"from":  "0x111",
			"to":    "0x222",
			"value": "1000000000000000000",
		},
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRegistryFormat(t *testing.T) {
	registry := NewRegistry()
	ev := sampleEvent()

	t.Run("built-in formats are registered", func(t *testing.T) {
		for _, name := range []string{"generic", "zapier", "discord"} {
			body, err := registry.Format(name, ev)
			require.NoError(t, err, "format %s", name)
			assert.True(t, json.Valid(body), "format %s produced invalid JSON", name)
		}
	})

	t.Run("error - unknown format", func(t *testing.T) {
		_, err := registry.Format("slack", ev)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), "slack")
	})

	t.Run("same event yields byte-identical output", func(t *testing.T) {
		for _, name := range []string{"generic", "zapier", "discord"} {
			first, err := registry.Format(name, ev)
			require.NoError(t, err)
			for i := 0; i < 10; i++ {
				again, err := registry.Format(name, ev)
				require.NoError(t, err)
				assert.Equal(t, string(first), string(again), "format %s", name)
			}
		}
	})

	t.Run("custom formatter can be registered", func(t *testing.T) {
		r := NewRegistry()
		r.Register(stubFormatter{})

		body, err := r.Format("stub", ev)
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(body))
		assert.Contains(t, r.Names(), "stub")
	})
}

type stubFormatter struct{}

func (stubFormatter) Name() string                       { return "stub" }
func (stubFormatter) Format(event.Event) ([]byte, error) { return []byte(`{"ok":true}`), nil }

func TestGenericFormat(t *testing.T) {
	body, err := Generic{}.Format(sampleEvent())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))

	assert.Equal(t, "Transfer", payload["event"])
	assert.Equal(t, "0xAbC123", payload["contract_address"])
	assert.Equal(t, float64(19_000_000), payload["block_number"])
	assert.Equal(t, "0xDeadBeef", payload["transaction_hash"])
	assert.Equal(t, float64(7), payload["log_index"])
	assert.Equal(t, "2024-05-01T12:00:00Z", payload["timestamp"])

	args, ok := payload["args"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0x111", args["from"])
	assert.Equal(t, "1000000000000000000", args["value"])
}

func TestZapierFormat(t *testing.T) {
	t.Run("args are flattened with the arg_ prefix", func(t *testing.T) {
		body, err := Zapier{}.Format(sampleEvent())
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))

		assert.Equal(t, "Transfer", payload["event_name"])
		assert.Equal(t, "0x111", payload["arg_from"])
		assert.Equal(t, "0x222", payload["arg_to"])
		// nenhum campo aninhado no topo
		assert.NotContains(t, payload, "args")
	})

	t.Run("nested args become their JSON text", func(t *testing.T) {
		ev := sampleEvent()
		ev.Args = map[string]any{
			"details": map[string]any{"tier": "gold"},
			"ids":     []any{1, 2, 3},
			"plain":   "kept",
		}

		body, err := Zapier{}.Format(ev)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))

		assert.Equal(t, `{"tier":"gold"}`, payload["arg_details"])
		assert.Equal(t, `[1,2,3]`, payload["arg_ids"])
		assert.Equal(t, "kept", payload["arg_plain"])
	})
}

func TestDiscordFormat(t *testing.T) {
	body, err := Discord{}.Format(sampleEvent())
	require.NoError(t, err)

	var message struct {
		Content string `json:"content"`
		Embeds  []struct {
			Title  string `json:"title"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(body, &message))

	assert.Contains(t, message.Content, "Transfer")
	require.Len(t, message.Embeds, 1)
	assert.Equal(t, "Transfer", message.Embeds[0].Title)

	// os três campos fixos primeiro, depois args em ordem alfabética
	fields := message.Embeds[0].Fields
	require.Len(t, fields, 6)
	assert.Equal(t, "Contract", fields[0].Name)
	assert.Equal(t, "Block", fields[1].Name)
	assert.Equal(t, "Tx", fields[2].Name)
	assert.Equal(t, "from", fields[3].Name)
	assert.Equal(t, "to", fields[4].Name)
	assert.Equal(t, "value", fields[5].Name)
	assert.Equal(t, "19000000", fields[1].Value)
}
