package delivery

import (
	"context"
	"time"
)

/* Stats are the rolling delivery statistics for one webhook
 * Derived from the full attempt history, never a separately-trusted
 * counter, so they can always be rebuilt from the log
 */
type Stats struct {
	WebhookID            string
	TotalDeliveries      int64
	SuccessfulDeliveries int64
	FailedDeliveries     int64
	AverageResponseTime  time.Duration
}

/* Attempt is one durably recorded delivery attempt
 * (DeliveryID, Number) is the idempotency key: recording the same
 * pair twice must not double-count
 */
type Attempt struct {
	DeliveryID string
	Number     int
	WebhookID  string
	Result     Result
	RecordedAt time.Time
}

/* Tracker is the boundary to the external delivery log
 * Every attempt, success or failure, is recorded before the delivery
 * is considered closed
 */
type Tracker interface {
	TrackDelivery(ctx context.Context, d Delivery, r Result) error
	GetDeliveryStats(ctx context.Context, webhookID string) (Stats, error)
}
