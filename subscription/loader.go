package subscription

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

/* Loader is a file-backed Store reading webhooks.yaml
 * Each Load reads and validates the whole file exactly once, so a
 * refresh picks up edits without restarting the process and never
 * mixes two versions of the file
 */

// fileConfig represents the structure of webhooks.yaml
type fileConfig struct {
	Webhooks      []webhookYAML      `yaml:"webhooks"`
	Subscriptions []subscriptionYAML `yaml:"subscriptions"`
}

// webhookYAML represents a single webhook definition in the YAML file
type webhookYAML struct {
	ID            string            `yaml:"id"`
	URL           string            `yaml:"url"`
	Format        string            `yaml:"format"`         // Default: generic
	Headers       map[string]string `yaml:"headers"`        // Optional
	TimeoutMs     int               `yaml:"timeout_ms"`     // Default: 30000
	RetryAttempts *int              `yaml:"retry_attempts"` // Default: 3
	Active        *bool             `yaml:"active"`         // Default: true
}

// subscriptionYAML represents a single subscription in the YAML file
type subscriptionYAML struct {
	ID              string `yaml:"id"`
	WebhookID       string `yaml:"webhook_id"`
	ContractAddress string `yaml:"contract_address"` // Empty = any contract
	EventName       string `yaml:"event_name"`       // Empty = any event; "name.*" = prefix
	Active          *bool  `yaml:"active"`           // Default: true
}

const (
	defaultFormat        = "generic"
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
)

// Loader reads webhook and subscription definitions from a YAML file
type Loader struct {
	path string
}

// NewLoader creates a loader for the given file path
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the file once and returns a mutually consistent pair of
// webhook configs and subscriptions
func (l *Loader) Load(ctx context.Context) ([]WebhookConfig, []Subscription, error) {
	cfg, err := l.read()
	if err != nil {
		return nil, nil, err
	}

	configs, err := parseWebhooks(cfg.Webhooks)
	if err != nil {
		return nil, nil, err
	}
	subs, err := parseSubscriptions(cfg.Subscriptions, configs)
	if err != nil {
		return nil, nil, err
	}

	return configs, subs, nil
}

// parseWebhooks validates all webhook definitions, applying defaults
func parseWebhooks(entries []webhookYAML) ([]WebhookConfig, error) {
	configs := make([]WebhookConfig, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, wy := range entries {
		if seen[wy.ID] {
			return nil, fmt.Errorf("duplicate webhook id: %s", wy.ID)
		}
		seen[wy.ID] = true

		wh := WebhookConfig{
			ID:            wy.ID,
			URL:           wy.URL,
			Format:        wy.Format,
			Headers:       wy.Headers,
			Timeout:       time.Duration(wy.TimeoutMs) * time.Millisecond,
			RetryAttempts: defaultRetryAttempts,
			Active:        true,
		}
		if wh.Format == "" {
			wh.Format = defaultFormat
		}
		if wy.TimeoutMs == 0 {
			wh.Timeout = defaultTimeout
		}
		if wy.RetryAttempts != nil {
			wh.RetryAttempts = *wy.RetryAttempts
		}
		if wy.Active != nil {
			wh.Active = *wy.Active
		}

		if err := wh.Validate(); err != nil {
			return nil, fmt.Errorf("validating webhook: %w", err)
		}
		configs = append(configs, wh)
	}

	return configs, nil
}

// parseSubscriptions validates all subscription definitions against the
// webhooks loaded from the same read
func parseSubscriptions(entries []subscriptionYAML, webhooks []WebhookConfig) ([]Subscription, error) {
	webhookIDs := make(map[string]bool, len(webhooks))
	for _, wh := range webhooks {
		webhookIDs[wh.ID] = true
	}

	subs := make([]Subscription, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, sy := range entries {
		if seen[sy.ID] {
			return nil, fmt.Errorf("duplicate subscription id: %s", sy.ID)
		}
		seen[sy.ID] = true

		sub := Subscription{
			ID:              sy.ID,
			WebhookID:       sy.WebhookID,
			ContractAddress: sy.ContractAddress,
			EventName:       sy.EventName,
			Active:          true,
		}
		if sy.Active != nil {
			sub.Active = *sy.Active
		}

		if err := sub.Validate(); err != nil {
			return nil, fmt.Errorf("validating subscription: %w", err)
		}
		if !webhookIDs[sub.WebhookID] {
			return nil, fmt.Errorf("subscription %s references unknown webhook: %s", sub.ID, sub.WebhookID)
		}
		subs = append(subs, sub)
	}

	return subs, nil
}

// read parses the YAML file
func (l *Loader) read() (fileConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading webhooks file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing webhooks YAML: %w", err)
	}

	return cfg, nil
}
