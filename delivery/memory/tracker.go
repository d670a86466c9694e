package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marcelsud/chainhook/delivery"
)

/* Tracker is the in-memory delivery log
 * Attempts are keyed by (delivery id, attempt number) so replayed
 * TrackDelivery calls are idempotent; stats are always computed from
 * the attempt records, never kept as separate counters
 */
type Tracker struct {
	mu sync.RWMutex
	// attempts[deliveryID][attemptNumber]
	attempts map[string]map[int]delivery.Attempt
	// byWebhook indexes attempt keys per webhook for stats queries
	byWebhook map[string][]attemptKey
}

type attemptKey struct {
	deliveryID string
	number     int
}

// NewTracker creates an empty in-memory tracker
func NewTracker() *Tracker {
	return &Tracker{
		attempts:  make(map[string]map[int]delivery.Attempt),
		byWebhook: make(map[string][]attemptKey),
	}
}

// TrackDelivery records one attempt outcome; duplicates are ignored
func (t *Tracker) TrackDelivery(ctx context.Context, d delivery.Delivery, r delivery.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	byNumber, ok := t.attempts[d.ID]
	if !ok {
		byNumber = make(map[int]delivery.Attempt)
		t.attempts[d.ID] = byNumber
	}
	if _, exists := byNumber[d.Attempts]; exists {
		// forced replay of an already-recorded attempt
		return nil
	}

	byNumber[d.Attempts] = delivery.Attempt{
		DeliveryID: d.ID,
		Number:     d.Attempts,
		WebhookID:  d.WebhookID,
		Result:     r,
		RecordedAt: time.Now(),
	}
	t.byWebhook[d.WebhookID] = append(t.byWebhook[d.WebhookID], attemptKey{
		deliveryID: d.ID,
		number:     d.Attempts,
	})
	return nil
}

// GetDeliveryStats rebuilds per-webhook stats from the attempt history
func (t *Tracker) GetDeliveryStats(ctx context.Context, webhookID string) (delivery.Stats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := delivery.Stats{WebhookID: webhookID}
	var latencySum time.Duration

	for _, key := range t.byWebhook[webhookID] {
		attempt := t.attempts[key.deliveryID][key.number]
		stats.TotalDeliveries++
		if attempt.Result.Success {
			stats.SuccessfulDeliveries++
		} else {
			stats.FailedDeliveries++
		}
		latencySum += attempt.Result.Latency
	}
	if stats.TotalDeliveries > 0 {
		stats.AverageResponseTime = latencySum / time.Duration(stats.TotalDeliveries)
	}

	return stats, nil
}

// Attempts returns the recorded attempts for one delivery in order
func (t *Tracker) Attempts(deliveryID string) []delivery.Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byNumber := t.attempts[deliveryID]
	attempts := make([]delivery.Attempt, 0, len(byNumber))
	for number := 1; ; number++ {
		attempt, ok := byNumber[number]
		if !ok {
			break
		}
		attempts = append(attempts, attempt)
	}
	return attempts
}
