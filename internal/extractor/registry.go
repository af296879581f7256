package extractor

import (
	"slices"
	"sync"

	"sjsage522/pricemonitor/internal/models"
	apperrors "sjsage522/pricemonitor/pkg/errors"
)

// Registry maps platform tags to strategies
type Registry struct {
	mu         sync.RWMutex
	strategies map[models.Platform]Strategy
}

// NewRegistry creates a registry holding strategies
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[models.Platform]Strategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry holds every built-in platform strategy
func DefaultRegistry() *Registry {
	return NewRegistry(CreateStrategies()...)
}

// Register adds or replaces the strategy for its platform
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Platform()] = s
}

// Lookup returns the strategy for platform or an UnsupportedPlatform error
func (r *Registry) Lookup(platform models.Platform) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[platform]
	if !ok {
		return nil, apperrors.NewUnsupportedPlatform(platform.String())
	}
	return s, nil
}

// Platforms returns the registered platform tags in sorted order
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]models.Platform, 0, len(r.strategies))
	for p := range r.strategies {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)
	return platforms
}
