// Package registry maps stable identifiers to factories. Registries are
// created by the application and passed to the parts that need them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicate is returned when identifier is already registered.
	ErrDuplicate = errors.New("already registered")
	// ErrNotFound is returned when identifier is not registered.
	ErrNotFound = errors.New("not registered")
)

// Registry is a set of factories of type F. Identifiers are case
// insensitive.
type Registry[F any] struct {
	name string
	mu   sync.RWMutex
	m    map[string]F
}

// New returns an empty registry. Name is used in error messages.
func New[F any](name string) *Registry[F] {
	return &Registry[F]{
		name: name,
		m:    make(map[string]F),
	}
}

// Register adds a factory.
func (r *Registry[F]) Register(id string, factory F) error {
	key := strings.ToLower(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[key]; ok {
		return fmt.Errorf("%s %q: %w", r.name, id, ErrDuplicate)
	}
	r.m[key] = factory
	return nil
}

// MustRegister adds a factory and panics on duplicate.
func (r *Registry[F]) MustRegister(id string, factory F) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Lookup returns a factory by identifier.
func (r *Registry[F]) Lookup(id string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[strings.ToLower(id)]
	if !ok {
		return f, fmt.Errorf("%s %q: %w", r.name, id, ErrNotFound)
	}
	return f, nil
}

// IDs returns sorted identifiers.
func (r *Registry[F]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.m))
	for id := range r.m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
