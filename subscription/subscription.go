package subscription

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/marcelsud/chainhook/event"
)

/* WebhookConfig represents a webhook destination configuration
 * Owned by the backing store; the engine holds a read-only cached copy
 */
type WebhookConfig struct {
	ID            string
	URL           string
	Format        string // payload format name: "generic", "zapier", ...
	Headers       map[string]string
	Timeout       time.Duration
	RetryAttempts int // maximum delivery attempts, including the first
	Active        bool
}

// Validate checks the webhook configuration invariants
func (c WebhookConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("webhook id cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty for webhook %s", c.ID)
	}
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url for webhook %s: %w", c.ID, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must be http or https for webhook %s (got %q)", c.ID, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must have a host for webhook %s", c.ID)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive for webhook %s", c.ID)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative for webhook %s", c.ID)
	}
	if c.Format == "" {
		return fmt.Errorf("format cannot be empty for webhook %s", c.ID)
	}
	return nil
}

/* Subscription maps a chain event filter to a webhook destination
 * An empty ContractAddress or EventName acts as a wildcard; EventName
 * also accepts a trailing ".*" matching a name prefix
 * (e.g. "token.*" matches "token.transfer")
 */
type Subscription struct {
	ID              string
	WebhookID       string
	ContractAddress string
	EventName       string
	Active          bool
}

// Validate checks the subscription invariants
func (s Subscription) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("subscription id cannot be empty")
	}
	if s.WebhookID == "" {
		return fmt.Errorf("webhook_id cannot be empty for subscription %s", s.ID)
	}
	name := s.EventName
	if len(name) > 2 && strings.HasSuffix(name, ".*") {
		name = name[:len(name)-2]
	}
	if strings.Contains(name, "*") {
		return fmt.Errorf("event_name wildcard must be a trailing .* for subscription %s (got %q)", s.ID, s.EventName)
	}
	return nil
}

/* Matches reports whether the subscription filter accepts the event
 * Contract addresses compare case-insensitively (hex casing varies by source)
 */
func (s Subscription) Matches(ev event.Event) bool {
	if !s.Active {
		return false
	}
	if s.ContractAddress != "" && !strings.EqualFold(s.ContractAddress, ev.ContractAddress) {
		return false
	}
	return matchEventName(s.EventName, ev.EventName)
}

// matchEventName accepts exact names, the empty wildcard, and a
// trailing ".*" prefix pattern
func matchEventName(pattern, name string) bool {
	if pattern == "" || pattern == name {
		return true
	}
	if len(pattern) > 2 && strings.HasSuffix(pattern, ".*") {
		prefix := pattern[:len(pattern)-2]
		return len(name) > len(prefix) && name[:len(prefix)] == prefix && name[len(prefix)] == '.'
	}
	return false
}
