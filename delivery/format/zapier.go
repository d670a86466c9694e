package format

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/chainhook/event"
)

/* Zapier renders the event as a flat JSON object
 * Zapier triggers map top-level fields to zap inputs, so nested args
 * are flattened under an "arg_" prefix
 */
type Zapier struct{}

// Name returns the format name
func (Zapier) Name() string { return "zapier" }

// Format flattens the event into a single-level JSON object
func (Zapier) Format(ev event.Event) ([]byte, error) {
	flat := map[string]any{
		"event_name":       ev.EventName,
		"contract_address": ev.ContractAddress,
		"block_number":     ev.BlockNumber,
		"transaction_hash": ev.TxHash,
		"log_index":        ev.LogIndex,
		"timestamp":        ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	for key, value := range ev.Args {
		flat["arg_"+key] = flatten(value)
	}
	return json.Marshal(flat)
}

/* flatten stringifies nested structures
 * Zapier handles scalars well; anything deeper becomes its JSON text
 */
func flatten(value any) any {
	switch value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(encoded)
	}
}
