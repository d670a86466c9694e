package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marcelsud/chainhook/delivery/format"
	"github.com/marcelsud/chainhook/delivery/httpclient"
	"github.com/marcelsud/chainhook/subscription"
)

// ConfigGetter resolves cached webhook configurations by id
type ConfigGetter interface {
	GetWebhookConfig(id string) (subscription.WebhookConfig, bool)
}

/* Sender orchestrates one delivery attempt: validate config, format
 * the payload, perform the POST, classify the outcome
 * Transport and formatting failures never escape as errors; they are
 * converted into a Result for the retry policy to judge
 */
type Sender struct {
	configs ConfigGetter
	formats *format.Registry
	client  *httpclient.Client
	logger  *slog.Logger
}

// NewSender creates a sender with dependency injection
func NewSender(configs ConfigGetter, formats *format.Registry, client *httpclient.Client, logger *slog.Logger) *Sender {
	return &Sender{
		configs: configs,
		formats: formats,
		client:  client,
		logger:  logger,
	}
}

/* Send resolves the webhook config and performs one attempt
 * A missing or inactive config is a ConfigInvalid failure without any
 * network call
 */
func (s *Sender) Send(ctx context.Context, d *Delivery) Result {
	cfg, ok := s.configs.GetWebhookConfig(d.WebhookID)
	if !ok {
		return ErrorResult(ConfigInvalid, fmt.Errorf("webhook config not found: %s", d.WebhookID), 0)
	}
	return s.SendWith(ctx, d, cfg)
}

/* SendWith performs one attempt against an explicitly provided config
 * The returned Result is the raw classified outcome; partial failures
 * are never swallowed
 */
func (s *Sender) SendWith(ctx context.Context, d *Delivery, cfg subscription.WebhookConfig) Result {
	if !cfg.Active {
		return ErrorResult(ConfigInvalid, fmt.Errorf("webhook %s is inactive", cfg.ID), 0)
	}
	if err := cfg.Validate(); err != nil {
		return ErrorResult(ConfigInvalid, fmt.Errorf("validating webhook config: %w", err), 0)
	}

	payload, err := s.formats.Format(cfg.Format, d.Event)
	if err != nil {
		if errors.Is(err, format.ErrUnsupportedFormat) {
			return ErrorResult(UnsupportedFormat, err, 0)
		}
		// formatter bugs are terminal for the webhook, not retryable
		return ErrorResult(UnsupportedFormat, err, 0)
	}
	d.Payload = payload

	resp, err := s.client.Post(ctx, cfg.URL, payload, cfg.Headers, cfg.Timeout)
	if err != nil {
		class := ClassifyError(err)
		s.logger.Warn("webhook attempt failed before a response",
			"delivery_id", d.ID,
			"webhook_id", cfg.ID,
			"class", class.String(),
			"error", err,
		)
		return ErrorResult(class, err, resp.Latency)
	}

	result := StatusResult(resp.StatusCode, resp.Body, resp.Latency)
	if !result.Success {
		s.logger.Warn("webhook attempt rejected by destination",
			"delivery_id", d.ID,
			"webhook_id", cfg.ID,
			"status", resp.StatusCode,
			"class", result.Class.String(),
		)
	}
	return result
}
