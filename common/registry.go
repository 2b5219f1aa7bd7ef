package common

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotRegistered is returned when a name was never registered.
	ErrNotRegistered = errors.New("[registry] - name not registered")
	// ErrRemoved is returned for names that were deliberately withdrawn.
	ErrRemoved = errors.New("[registry] - name no longer supported")
	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("[registry] - name already registered")
)

// Registry maps case-insensitive names to values (algorithms, solver
// factories). A name can also be marked as removed, which makes lookups
// fail with ErrRemoved instead of ErrNotRegistered.
type Registry[T any] struct {
	kind    string
	entries map[string]T
	removed map[string]string
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry; kind is only used in error messages
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]T),
		removed: make(map[string]string),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register registers a new value with the given name
func (r *Registry[T]) Register(name string, value T) error {
	key := normalizeName(name)
	if key == "" {
		return errors.Newf("[registry] - empty %s name", r.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return errors.Wrapf(ErrAlreadyRegistered, "%s '%s'", r.kind, key)
	}
	if _, gone := r.removed[key]; gone {
		return errors.Wrapf(ErrRemoved, "%s '%s'", r.kind, key)
	}

	r.entries[key] = value
	return nil
}

// MarkRemoved records that name used to exist but is no longer supported
func (r *Registry[T]) MarkRemoved(name, reason string) {
	key := normalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	r.removed[key] = reason
}

// Get retrieves a value by name
func (r *Registry[T]) Get(name string) (T, error) {
	key := normalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if value, exists := r.entries[key]; exists {
		return value, nil
	}

	var zero T
	if reason, gone := r.removed[key]; gone {
		return zero, errors.Wrapf(ErrRemoved, "%s '%s': %s", r.kind, key, reason)
	}
	return zero, errors.Wrapf(ErrNotRegistered, "%s '%s'", r.kind, key)
}

// List returns all registered names, sorted
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
