package format

import (
	"encoding/json"
	"time"

	"github.com/marcelsud/chainhook/event"
)

/* Generic renders the event as a plain JSON document
 * This is the default format for destinations that consume the raw
 * event structure
 */
type Generic struct{}

// genericPayload is the wire shape of the generic format
type genericPayload struct {
	Event           string         `json:"event"`
	ContractAddress string         `json:"contract_address"`
	BlockNumber     uint64         `json:"block_number"`
	TransactionHash string         `json:"transaction_hash"`
	LogIndex        uint           `json:"log_index"`
	Timestamp       string         `json:"timestamp"`
	Args            map[string]any `json:"args"`
}

// Name returns the format name
func (Generic) Name() string { return "generic" }

// Format renders the event; json.Marshal sorts map keys, keeping output deterministic
func (Generic) Format(ev event.Event) ([]byte, error) {
	return json.Marshal(genericPayload{
		Event:           ev.EventName,
		ContractAddress: ev.ContractAddress,
		BlockNumber:     ev.BlockNumber,
		TransactionHash: ev.TxHash,
		LogIndex:        ev.LogIndex,
		Timestamp:       ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Args:            ev.Args,
	})
}
