package circuit

import (
	"sync"
)

// Registry hands out one Breaker per protected target, created lazily on
// first use and retained for the registry's lifetime. All breakers share the
// registry's Config.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry whose breakers use cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for target, creating it on first observation.
func (r *Registry) Get(target string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[target]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[target]; ok {
		return b
	}
	b = NewBreaker(target, r.cfg)
	r.breakers[target] = b
	return b
}

// Targets returns the names of all registered breakers.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}
