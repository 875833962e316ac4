package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the configured completion backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Gateway
	def      string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Gateway),
	}
}

// Register adds a backend, replacing any with the same name.
// The first registered backend becomes the default.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[g.Name()] = g
	if r.def == "" {
		r.def = g.Name()
	}
}

// SetDefault selects the backend used when no name is given.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("backend not found: %s", name)
	}
	r.def = name
	return nil
}

// Get retrieves a backend by name. An empty name returns the default.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.def
	}
	g, ok := r.backends[name]
	if !ok {
		if name == "" {
			return nil, fmt.Errorf("no backend registered")
		}
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	return g, nil
}

// Default returns the default backend.
func (r *Registry) Default() (Gateway, error) {
	return r.Get("")
}

// Has checks if a backend with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered backends ordered by name.
func (r *Registry) List() []Gateway {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Gateway, 0, len(names))
	for _, n := range names {
		out = append(out, r.backends[n])
	}
	return out
}
