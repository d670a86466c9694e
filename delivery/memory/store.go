package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marcelsud/chainhook/delivery"
)

/* Store is the in-memory job store
 * Suitable for single-process deployments and tests; the redis store
 * covers deployments that need delivery state to survive restarts
 */
type Store struct {
	mu         sync.RWMutex
	deliveries map[string]delivery.Delivery
	expiries   map[string]time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		deliveries: make(map[string]delivery.Delivery),
		expiries:   make(map[string]time.Time),
	}
}

// Save upserts the full delivery state
func (s *Store) Save(ctx context.Context, d delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[d.ID] = d
	return nil
}

// Get retrieves a delivery by id, honoring expirations lazily
func (s *Store) Get(ctx context.Context, id string) (delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.expiries[id]; ok && time.Now().After(expiry) {
		delete(s.deliveries, id)
		delete(s.expiries, id)
	}

	d, ok := s.deliveries[id]
	if !ok {
		return delivery.Delivery{}, delivery.ErrNotFound
	}
	return d, nil
}

// SetTTL schedules a delivery record for cleanup
func (s *Store) SetTTL(ctx context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[id]; !ok {
		return delivery.ErrNotFound
	}
	s.expiries[id] = time.Now().Add(ttl)
	return nil
}

// Close releases nothing for the in-memory store
func (s *Store) Close(ctx context.Context) error {
	return nil
}
