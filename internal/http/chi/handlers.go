package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/chainhook/delivery"
	"github.com/marcelsud/chainhook/event"
	"github.com/marcelsud/chainhook/metrics"
	"github.com/marcelsud/chainhook/subscription"
)

/* Small, consumer-side interfaces for the HTTP layer
 * The handlers depend on behavior, not on the engine's concrete types
 */

// EventIngress is the engine's sole event entry point
type EventIngress interface {
	OnEvent(ctx context.Context, ev event.Event) ([]string, error)
}

// SubscriptionAdmin exposes the cached subscription set and its refresh
type SubscriptionAdmin interface {
	RefreshConfigs(ctx context.Context) error
	Subscriptions() []subscription.Subscription
}

// Handlers wires all HTTP routes for the relay
func Handlers(ctx context.Context, ingress EventIngress, deliveries delivery.Reader, tracker delivery.Tracker, admin SubscriptionAdmin, collector metrics.Collector, metricsHandler http.Handler) *chi.Mux {
	// Logger
	logger := httplog.NewLogger("chainhook", httplog.Options{
		JSON: true,
	})
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))

	r.Method(http.MethodPost, "/v1/events", postEvent(ingress))
	r.Method(http.MethodGet, "/v1/deliveries/{delivery_id}", getDelivery(deliveries))
	r.Method(http.MethodGet, "/v1/webhooks/{webhook_id}/stats", getWebhookStats(tracker))
	r.Method(http.MethodGet, "/v1/subscriptions", getSubscriptions(admin))
	r.Method(http.MethodPost, "/v1/subscriptions/refresh", refreshSubscriptions(admin))
	r.Method(http.MethodGet, "/healthz", getHealth(collector))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	return r
}
