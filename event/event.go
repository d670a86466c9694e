package event

import (
	"fmt"
	"strings"
	"time"
)

/* Event represents a single decoded on-chain log occurrence
 * Uses value semantics as it represents data, not behavior
 * Immutable once emitted by the event source
 */
type Event struct {
	ContractAddress string
	EventName       string
	BlockNumber     uint64
	TxHash          string
	LogIndex        uint
	Args            map[string]any
	Timestamp       time.Time
}

/* Key returns the unique identifier of an on-chain occurrence
 * (TxHash, LogIndex) uniquely identifies an event on the chain,
 * so the key is stable across replays of the same event
 */
func (e Event) Key() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(e.TxHash), e.LogIndex)
}

// Validate checks that the event carries the minimum identifying fields
func (e Event) Validate() error {
	if e.ContractAddress == "" {
		return fmt.Errorf("contract address is required")
	}
	if e.EventName == "" {
		return fmt.Errorf("event name is required")
	}
	if e.TxHash == "" {
		return fmt.Errorf("transaction hash is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
