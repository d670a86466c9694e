package delivery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/chainhook/delivery/format"
	"github.com/marcelsud/chainhook/delivery/httpclient"
	"github.com/marcelsud/chainhook/event"
	"github.com/marcelsud/chainhook/subscription"
	"github.com/stretchr/testify/assert"
)

// stubConfigs is a fixed in-memory ConfigGetter
type stubConfigs map[string]subscription.WebhookConfig

func (s stubConfigs) GetWebhookConfig(id string) (subscription.WebhookConfig, bool) {
	cfg, ok := s[id]
	return cfg, ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() event.Event {
	return event.Event{
		ContractAddress: "0xabc",
		EventName:       "Transfer",
		BlockNumber:     100,
		TxHash:          "0x1",
		LogIndex:        0,
		Args:            map[string]any{"value": "42"},
		Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testDelivery(webhookID string) Delivery {
	sub := subscription.Subscription{ID: "sub-1", WebhookID: webhookID, Active: true}
	cfg := subscription.WebhookConfig{RetryAttempts: 3}
	return New(sub, cfg, testEvent())
}

/* countingServer counts requests so tests can assert that invalid
 * configurations produce zero network calls
 */
func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSenderSend(t *testing.T) {
	ctx := context.Background()

	newSender := func(configs stubConfigs) *Sender {
		return NewSender(configs, format.NewRegistry(), httpclient.New(), discardLogger())
	}

	t.Run("success - 2xx from the destination", func(t *testing.T) {
		srv, hits := countingServer(t, http.StatusOK)
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "generic", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.True(t, result.Success)
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Equal(t, NoFailure, result.Class)
		assert.Equal(t, int64(1), hits.Load())
		assert.NotEmpty(t, d.Payload, "formatted payload is kept on the delivery")
	})

	t.Run("missing config - no network call", func(t *testing.T) {
		_, hits := countingServer(t, http.StatusOK)
		sender := newSender(stubConfigs{})

		d := testDelivery("wh-missing")
		result := sender.Send(ctx, &d)

		assert.False(t, result.Success)
		assert.Equal(t, ConfigInvalid, result.Class)
		assert.Contains(t, result.Error, "wh-missing")
		assert.Zero(t, hits.Load())
	})

	t.Run("inactive config - no network call", func(t *testing.T) {
		srv, hits := countingServer(t, http.StatusOK)
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "generic", Timeout: time.Second, Active: false},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.Equal(t, ConfigInvalid, result.Class)
		assert.Zero(t, hits.Load())
	})

	t.Run("invalid url - no network call", func(t *testing.T) {
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: "not-a-url", Format: "generic", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.Equal(t, ConfigInvalid, result.Class)
	})

	t.Run("unsupported format - no network call", func(t *testing.T) {
		srv, hits := countingServer(t, http.StatusOK)
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "carrier-pigeon", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.Equal(t, UnsupportedFormat, result.Class)
		assert.Zero(t, hits.Load())
	})

	t.Run("5xx classified as a server error", func(t *testing.T) {
		srv, _ := countingServer(t, http.StatusInternalServerError)
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "generic", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.False(t, result.Success)
		assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
		assert.Equal(t, ServerError, result.Class)
	})

	t.Run("429 classified as throttled", func(t *testing.T) {
		srv, _ := countingServer(t, http.StatusTooManyRequests)
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "generic", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.Equal(t, Throttled, result.Class)
		assert.True(t, result.Class.Retryable())
	})

	t.Run("connection refused classified as a network error", func(t *testing.T) {
		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: "http://127.0.0.1:1", Format: "generic", Timeout: time.Second, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.False(t, result.Success)
		assert.Equal(t, NetworkError, result.Class)
	})

	t.Run("slow destination classified as a timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		t.Cleanup(func() { close(release); srv.Close() })

		sender := newSender(stubConfigs{
			"wh-1": {ID: "wh-1", URL: srv.URL, Format: "generic", Timeout: 50 * time.Millisecond, Active: true},
		})

		d := testDelivery("wh-1")
		result := sender.Send(ctx, &d)

		assert.Equal(t, TimeoutError, result.Class)
	})
}
