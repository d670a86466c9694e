package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/chainhook/delivery"
	"github.com/marcelsud/chainhook/event"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of the delivery job store
 * Delivery state lives in Redis Hashes keyed by delivery id, so the
 * job store survives process restarts; terminal deliveries expire via
 * key TTLs set by the dispatcher
 */

// Key naming: delivery:{delivery_id}
const hashPrefix = "delivery"

type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis-backed job store
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{
		client: client,
	}, nil
}

// Save upserts the full delivery state into a hash
func (s *Store) Save(ctx context.Context, d delivery.Delivery) error {
	hashKey := fmt.Sprintf("%s:%s", hashPrefix, d.ID)

	eventJSON, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	err = s.client.HSet(ctx, hashKey, map[string]interface{}{
		"id":              d.ID,
		"subscription_id": d.SubscriptionID,
		"webhook_id":      d.WebhookID,
		"event":           string(eventJSON),
		"payload":         d.Payload,
		"attempts":        d.Attempts,
		"max_attempts":    d.MaxAttempts,
		"status":          d.Status.String(),
		"last_error":      d.LastError,
		"next_retry_at":   d.NextRetryAt.Unix(),
		"created_at":      d.CreatedAt.Unix(),
		"updated_at":      d.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("storing delivery state: %w", err)
	}

	return nil
}

// Get retrieves a delivery by id from its hash
func (s *Store) Get(ctx context.Context, id string) (delivery.Delivery, error) {
	hashKey := fmt.Sprintf("%s:%s", hashPrefix, id)

	data, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	if len(data) == 0 {
		return delivery.Delivery{}, delivery.ErrNotFound
	}

	var ev event.Event
	if eventStr, ok := data["event"]; ok && eventStr != "" {
		if err := json.Unmarshal([]byte(eventStr), &ev); err != nil {
			return delivery.Delivery{}, fmt.Errorf("unmarshaling event: %w", err)
		}
	}

	d := delivery.Delivery{
		ID:             data["id"],
		SubscriptionID: data["subscription_id"],
		WebhookID:      data["webhook_id"],
		Event:          ev,
		Payload:        []byte(data["payload"]),
		Attempts:       int(parseInt64(data["attempts"])),
		MaxAttempts:    int(parseInt64(data["max_attempts"])),
		Status:         delivery.NewStatus(data["status"]),
		LastError:      data["last_error"],
		NextRetryAt:    time.Unix(parseInt64(data["next_retry_at"]), 0),
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:      time.Unix(parseInt64(data["updated_at"]), 0),
	}

	return d, nil
}

// SetTTL sets an expiration on a delivery hash
func (s *Store) SetTTL(ctx context.Context, id string, ttl time.Duration) error {
	hashKey := fmt.Sprintf("%s:%s", hashPrefix, id)

	err := s.client.Expire(ctx, hashKey, ttl).Err()
	if err != nil {
		return fmt.Errorf("setting delivery TTL: %w", err)
	}

	return nil
}

// Close releases the Redis connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

// parseInt64 converts a Redis hash field to int64, defaulting to zero
func parseInt64(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
