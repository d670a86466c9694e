package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/chainhook/delivery"
	"github.com/marcelsud/chainhook/metrics"
)

// deliveryResponse represents a delivery in the API
type deliveryResponse struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	WebhookID      string    `json:"webhook_id"`
	Attempts       int       `json:"attempts"`
	MaxAttempts    int       `json:"max_attempts"`
	Status         string    `json:"status"`
	LastError      string    `json:"last_error,omitempty"`
	NextRetryAt    time.Time `json:"next_retry_at,omitzero"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// statsResponse represents per-webhook delivery stats in the API
type statsResponse struct {
	WebhookID             string `json:"webhook_id"`
	TotalDeliveries       int64  `json:"total_deliveries"`
	SuccessfulDeliveries  int64  `json:"successful_deliveries"`
	FailedDeliveries      int64  `json:"failed_deliveries"`
	AverageResponseTimeMs int64  `json:"average_response_time_ms"`
}

// subscriptionResponse represents a subscription in the API
type subscriptionResponse struct {
	ID              string `json:"id"`
	WebhookID       string `json:"webhook_id"`
	ContractAddress string `json:"contract_address,omitempty"`
	EventName       string `json:"event_name,omitempty"`
	Active          bool   `json:"active"`
}

// getDelivery handles GET /v1/deliveries/{delivery_id}
func getDelivery(deliveries delivery.Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "delivery_id")
		if id == "" {
			http.Error(w, "delivery_id is required", http.StatusBadRequest)
			return
		}

		d, err := deliveries.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, delivery.ErrNotFound) {
				http.Error(w, fmt.Sprintf("delivery not found: %s", id), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := deliveryResponse{
			ID:             d.ID,
			SubscriptionID: d.SubscriptionID,
			WebhookID:      d.WebhookID,
			Attempts:       d.Attempts,
			MaxAttempts:    d.MaxAttempts,
			Status:         d.Status.String(),
			LastError:      d.LastError,
			NextRetryAt:    d.NextRetryAt,
			CreatedAt:      d.CreatedAt,
			UpdatedAt:      d.UpdatedAt,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getWebhookStats handles GET /v1/webhooks/{webhook_id}/stats
func getWebhookStats(tracker delivery.Tracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookID := chi.URLParam(r, "webhook_id")
		if webhookID == "" {
			http.Error(w, "webhook_id is required", http.StatusBadRequest)
			return
		}

		stats, err := tracker.GetDeliveryStats(r.Context(), webhookID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := statsResponse{
			WebhookID:             stats.WebhookID,
			TotalDeliveries:       stats.TotalDeliveries,
			SuccessfulDeliveries:  stats.SuccessfulDeliveries,
			FailedDeliveries:      stats.FailedDeliveries,
			AverageResponseTimeMs: stats.AverageResponseTime.Milliseconds(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getSubscriptions handles GET /v1/subscriptions
func getSubscriptions(admin SubscriptionAdmin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subs := admin.Subscriptions()

		responses := make([]subscriptionResponse, 0, len(subs))
		for _, sub := range subs {
			responses = append(responses, subscriptionResponse{
				ID:              sub.ID,
				WebhookID:       sub.WebhookID,
				ContractAddress: sub.ContractAddress,
				EventName:       sub.EventName,
				Active:          sub.Active,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// refreshSubscriptions handles POST /v1/subscriptions/refresh
func refreshSubscriptions(admin SubscriptionAdmin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := admin.RefreshConfigs(r.Context()); err != nil {
			// the last-good cache keeps serving; surface the failure
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// getHealth handles GET /healthz
func getHealth(collector metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := collector.Collect(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		response := struct {
			Status string           `json:"status"`
			Engine metrics.Snapshot `json:"engine"`
		}{
			Status: "ok",
			Engine: snap,
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
