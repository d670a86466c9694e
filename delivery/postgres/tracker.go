package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marcelsud/chainhook/delivery"
	_ "github.com/lib/pq" // PostgreSQL driver
)

/* PostgreSQL implementation of the delivery log
 * Every attempt is one row keyed by (delivery_id, attempt_number), so
 * replayed TrackDelivery calls hit the primary key and insert nothing.
 * Stats are an aggregate over the rows, never a trusted counter
 */
type Tracker struct {
	DB *sql.DB
}

// NewTracker creates a tracker with the default pool (25, 5, 5 min)
func NewTracker(connectionString string) (*Tracker, error) {
	return NewTrackerWithPoolConfig(connectionString, 25, 5, 5)
}

// NewTrackerWithPoolConfig creates a tracker with a custom connection pool
func NewTrackerWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Tracker, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Tracker{
		DB: db,
	}, nil
}

// TrackDelivery durably records one attempt; duplicate attempts are no-ops
func (t *Tracker) TrackDelivery(ctx context.Context, d delivery.Delivery, r delivery.Result) error {
	query := `INSERT INTO delivery_attempts
		(delivery_id, attempt_number, webhook_id, subscription_id, success, status_code, response_body, latency_ms, error_message, failure_class, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (delivery_id, attempt_number) DO NOTHING`

	var statusCode sql.NullInt64
	if r.StatusCode != 0 {
		statusCode = sql.NullInt64{Int64: int64(r.StatusCode), Valid: true}
	}

	_, err := t.DB.ExecContext(ctx, query,
		d.ID,
		d.Attempts,
		d.WebhookID,
		d.SubscriptionID,
		r.Success,
		statusCode,
		r.ResponseBody,
		r.Latency.Milliseconds(),
		r.Error,
		r.Class.String(),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}

	return nil
}

// GetDeliveryStats rebuilds per-webhook stats from the attempt log
func (t *Tracker) GetDeliveryStats(ctx context.Context, webhookID string) (delivery.Stats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE success),
		COUNT(*) FILTER (WHERE NOT success),
		COALESCE(AVG(latency_ms), 0)
		FROM delivery_attempts WHERE webhook_id = $1`

	stats := delivery.Stats{WebhookID: webhookID}
	var avgLatencyMs float64

	err := t.DB.QueryRowContext(ctx, query, webhookID).Scan(
		&stats.TotalDeliveries,
		&stats.SuccessfulDeliveries,
		&stats.FailedDeliveries,
		&avgLatencyMs,
	)
	if err != nil {
		return delivery.Stats{}, fmt.Errorf("selecting delivery stats: %w", err)
	}

	stats.AverageResponseTime = time.Duration(avgLatencyMs * float64(time.Millisecond))
	return stats, nil
}

// Close releases the connection pool
func (t *Tracker) Close(ctx context.Context) error {
	return t.DB.Close()
}
