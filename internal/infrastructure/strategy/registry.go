// Package strategy holds the batch selection strategies available to the
// allocator and which one is used when none is named.
package strategy

import (
	"sort"
	"sync"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared/strategy"
)

// Registry maps strategy names to batch selection strategies
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]strategy.BatchManagementStrategy
	fallback string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]strategy.BatchManagementStrategy)}
}

// Register adds s under its name
func (r *Registry) Register(s strategy.BatchManagementStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[s.Name()]; ok {
		return shared.Errorf(shared.CodeAlreadyExists, "batch strategy %q already registered", s.Name())
	}
	r.byName[s.Name()] = s
	return nil
}

// Lookup returns the named strategy; an empty name selects the default
func (r *Registry) Lookup(name string) (strategy.BatchManagementStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		if r.fallback == "" {
			return nil, shared.NewDomainError(shared.CodeNotFound, "no default batch strategy set")
		}
		name = r.fallback
	}
	s, ok := r.byName[name]
	if !ok {
		return nil, shared.Errorf(shared.CodeNotFound, "batch strategy %q not found", name)
	}
	return s, nil
}

// Names lists the registered strategies in name order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault selects the strategy used when Lookup gets an empty name
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return shared.Errorf(shared.CodeNotFound, "batch strategy %q not found", name)
	}
	r.fallback = name
	return nil
}

// Default returns the name of the default strategy
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}
