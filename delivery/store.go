package delivery

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a delivery id is unknown to the store
var ErrNotFound = errors.New("delivery not found")

/* Small, focused interfaces in the repository style
 * The job store holds current delivery state keyed by delivery id,
 * replacing ambient module-level bookkeeping maps
 */

// Reader provides read operations for delivery state
type Reader interface {
	Get(ctx context.Context, id string) (Delivery, error)
}

// Writer provides write operations for delivery state
type Writer interface {
	// Save upserts the full delivery state
	Save(ctx context.Context, d Delivery) error
	/* SetTTL sets an expiration on a delivery record
	 * Used to automatically clean up terminal deliveries
	 */
	SetTTL(ctx context.Context, id string, ttl time.Duration) error
}

// Store combines the job store operations with lifecycle management
type Store interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
