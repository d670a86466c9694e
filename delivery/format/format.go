package format

import (
	"errors"
	"fmt"
	"sync"

	"github.com/marcelsud/chainhook/event"
)

/* ErrUnsupportedFormat is returned for unknown format names
 * Callers decide whether that is fatal for the webhook; the registry
 * never silently falls back to a default format
 */
var ErrUnsupportedFormat = errors.New("unsupported payload format")

/* Formatter converts a chain event into a destination-specific body
 * Formatting is pure: the same event always yields byte-identical output
 */
type Formatter interface {
	Name() string
	Format(ev event.Event) ([]byte, error)
}

/* Registry holds the closed set of supported formats
 * Extended by registration rather than ad hoc branching
 */
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
}

// NewRegistry creates a registry with the built-in formats registered
func NewRegistry() *Registry {
	r := &Registry{
		formatters: make(map[string]Formatter),
	}
	r.Register(Generic{})
	r.Register(Zapier{})
	r.Register(Discord{})
	return r
}

// Register adds or replaces a formatter under its name
func (r *Registry) Register(f Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[f.Name()] = f
}

// Format renders the event with the named formatter
func (r *Registry) Format(name string, ev event.Event) ([]byte, error) {
	r.mu.RLock()
	f, ok := r.formatters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	body, err := f.Format(ev)
	if err != nil {
		return nil, fmt.Errorf("formatting %s payload: %w", name, err)
	}
	return body, nil
}

// Names returns the registered format names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	return names
}
