package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/chainhook/event"
)

/* Store is the narrow boundary to the external subscription/config store
 * The engine never owns schema or migrations for it
 * A single Load returns both sets so one refresh never mixes two
 * versions of the backing data
 */
type Store interface {
	Load(ctx context.Context) ([]WebhookConfig, []Subscription, error)
}

/* snapshot is one immutable generation of the cache
 * Readers always see a fully-loaded set, never a partial update
 */
type snapshot struct {
	webhooks      map[string]WebhookConfig
	subscriptions []Subscription
	loadedAt      time.Time
}

/* Provider caches webhook definitions for the delivery engine
 * The cache is replaced atomically on refresh (single-writer swap);
 * a failed refresh keeps serving the last-good generation
 */
type Provider struct {
	store  Store
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	// serializes concurrent refresh calls, readers never take it
	refreshMu sync.Mutex
}

// NewProvider creates a provider with an empty cache
func NewProvider(store Store, logger *slog.Logger) *Provider {
	p := &Provider{
		store:  store,
		logger: logger,
	}
	p.current.Store(&snapshot{webhooks: map[string]WebhookConfig{}})
	return p
}

// LoadWebhookConfigs populates the cache from the backing store
func (p *Provider) LoadWebhookConfigs(ctx context.Context) error {
	return p.RefreshConfigs(ctx)
}

/* RefreshConfigs fully replaces the cache from the backing store
 * On failure the previous generation stays in place and the error
 * is returned for reporting, never crashing the engine
 */
func (p *Provider) RefreshConfigs(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	webhooks, subscriptions, err := p.store.Load(ctx)
	if err != nil {
		p.logger.Error("refreshing webhook configs failed, keeping last-good cache", "error", err)
		return fmt.Errorf("loading webhook definitions: %w", err)
	}

	next := &snapshot{
		webhooks:      make(map[string]WebhookConfig, len(webhooks)),
		subscriptions: subscriptions,
		loadedAt:      time.Now(),
	}
	for _, wh := range webhooks {
		next.webhooks[wh.ID] = wh
	}

	p.current.Store(next)
	p.logger.Info("webhook configs refreshed",
		"webhooks", len(next.webhooks),
		"subscriptions", len(next.subscriptions),
	)
	return nil
}

// GetWebhookConfig looks up a cached webhook config by id
func (p *Provider) GetWebhookConfig(id string) (WebhookConfig, bool) {
	snap := p.current.Load()
	cfg, ok := snap.webhooks[id]
	return cfg, ok
}

// Subscriptions returns the cached subscription set
func (p *Provider) Subscriptions() []Subscription {
	return p.current.Load().subscriptions
}

// MatchSubscriptions returns the active subscriptions whose filter accepts the event
func (p *Provider) MatchSubscriptions(ev event.Event) []Subscription {
	snap := p.current.Load()
	var matched []Subscription
	for _, sub := range snap.subscriptions {
		if sub.Matches(ev) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// LoadedAt returns when the current cache generation was loaded
func (p *Provider) LoadedAt() time.Time {
	return p.current.Load().loadedAt
}
