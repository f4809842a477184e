// This file implements the ordered codec registry. Registration order is
// preserved and becomes the offer order in SDP.

package video

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds the codec descriptors available to a stream.
//
// The registry is external to the stream itself: several streams may
// share one registry, and the stream only keeps a reference to the
// descriptor currently selected per side.
type Registry struct {
	mu     sync.RWMutex
	codecs []*Codec
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs: make([]*Codec, 0, 4),
	}
}

// Register appends a codec descriptor to the registry.
//
// Parameters:
//   - c: Descriptor to add; its name must be non-empty and unused
//
// Returns:
//   - error: ErrInvalidArgument for nil/unnamed/duplicate descriptors
func (r *Registry) Register(c *Codec) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("register codec: %w", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, have := range r.codecs {
		if strings.EqualFold(have.Name, c.Name) {
			return fmt.Errorf("register codec %q: already registered: %w", c.Name, ErrInvalidArgument)
		}
	}

	r.codecs = append(r.codecs, c)

	logrus.WithFields(logrus.Fields{
		"function":     "Registry.Register",
		"codec":        c.Name,
		"payload_type": c.PayloadType,
	}).Debug("Codec registered")

	return nil
}

// Find returns the descriptor with the given SDP encoding name, matched
// case-insensitively, or nil when no such codec is registered.
func (r *Registry) Find(name string) *Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.codecs {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// All returns the registered descriptors in registration order.
func (r *Registry) All() []*Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Codec, len(r.codecs))
	copy(out, r.codecs)
	return out
}

// Count returns the number of registered codecs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codecs)
}
