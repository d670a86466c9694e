package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/chainhook/event"
	"github.com/marcelsud/chainhook/subscription"
)

/* Delivery represents one logical attempt-sequence to deliver a single
 * event to a single webhook
 * Created when a subscription matches an event; mutated exclusively by
 * the dispatcher as attempts occur
 */
type Delivery struct {
	ID             string
	SubscriptionID string
	WebhookID      string
	Event          event.Event
	Payload        []byte
	Attempts       int
	MaxAttempts    int
	Status         Status
	LastError      string
	NextRetryAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates a pending delivery for a matched (event, subscription) pair
func New(sub subscription.Subscription, cfg subscription.WebhookConfig, ev event.Event) Delivery {
	now := time.Now()
	// RetryAttempts is the total attempt budget; every delivery gets at least one
	maxAttempts := cfg.RetryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Delivery{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		WebhookID:      sub.WebhookID,
		Event:          ev,
		Attempts:       0,
		MaxAttempts:    maxAttempts,
		Status:         Pending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
