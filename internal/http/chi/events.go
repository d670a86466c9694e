package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marcelsud/chainhook/delivery"
	"github.com/marcelsud/chainhook/event"
)

/* HTTP layer DTOs for the event ingress
 * Separate from domain entities to avoid leaking internal structure
 */

// eventRequest represents an incoming chain event
type eventRequest struct {
	ContractAddress string         `json:"contract_address"`
	EventName       string         `json:"event_name"`
	BlockNumber     uint64         `json:"block_number"`
	TransactionHash string         `json:"transaction_hash"`
	LogIndex        uint           `json:"log_index"`
	Args            map[string]any `json:"args"`
	Timestamp       time.Time      `json:"timestamp"`
}

// eventResponse represents the API response when accepting an event
type eventResponse struct {
	DeliveryIDs []string `json:"delivery_ids"`
	Matched     int      `json:"matched"`
}

// postEvent handles POST /v1/events
func postEvent(ingress EventIngress) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid event body: %v", err), http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ev := event.Event{
			ContractAddress: req.ContractAddress,
			EventName:       req.EventName,
			BlockNumber:     req.BlockNumber,
			TxHash:          req.TransactionHash,
			LogIndex:        req.LogIndex,
			Args:            req.Args,
			Timestamp:       req.Timestamp,
		}

		ids, err := ingress.OnEvent(r.Context(), ev)
		if err != nil {
			if errors.Is(err, delivery.ErrShuttingDown) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Return 202 Accepted with the created delivery ids
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		response := eventResponse{
			DeliveryIDs: ids,
			Matched:     len(ids),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
