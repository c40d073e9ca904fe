// Package retrydetect maps framework-specific retry markers onto the neutral
// RetryMetadata shape. Framework adapters register a detection rule per
// marker name at construction time; the core only does a generic lookup,
// never runtime type inspection.
package retrydetect

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

// Rule turns the raw marker values attached to a test into retry metadata.
// The second return value is false when the markers do not describe a retry
// for this mechanism after all.
type Rule func(markers map[string]string) (*datamodel.RetryMetadata, bool)

// Detector is the narrow boundary the engine consumes. Registry implements
// it; adapters with richer needs can supply their own.
type Detector interface {
	Detect(markers map[string]string) (*datamodel.RetryMetadata, bool)
}

// Registry maps marker names to detection rules.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
	log   *zap.SugaredLogger
}

func NewRegistry(log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.S()
	}
	return &Registry{
		rules: make(map[string]Rule),
		log:   log,
	}
}

// Register adds a rule for one marker name. Registering the same name twice
// replaces the earlier rule.
func (r *Registry) Register(marker string, rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[marker] = rule
}

// Detect looks up a rule for any marker present on the test and applies it.
// Metadata that violates its own invariants is rejected, not repaired: a
// broken adapter must not corrupt reliability data.
func (r *Registry) Detect(markers map[string]string) (*datamodel.RetryMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for marker := range markers {
		rule, known := r.rules[marker]
		if !known {
			continue
		}
		metadata, ok := rule(markers)
		if !ok || metadata == nil {
			continue
		}
		if err := metadata.Validate(); err != nil {
			r.log.Warnw("Ignoring invalid retry metadata from adapter",
				"marker", marker, "error", err)
			continue
		}
		return metadata, true
	}
	return nil, false
}
