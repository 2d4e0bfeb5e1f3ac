package backend

import (
	"fmt"
	"slices"
	"sync"
)

// BackendFactory creates a new, uninitialized backend instance.
type BackendFactory func(opts Options) Backend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first to initialize wins).
	backendPriority = []string{BackendHAL, BackendNoop, BackendRecord}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of the registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a new, uninitialized backend by name.
// Returns nil if the backend is not registered.
func Get(name string, opts Options) Backend {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory(opts)
}

// Open returns the named backend, initialized.
func Open(name string, opts Options) (Backend, error) {
	b := Get(name, opts)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return b, nil
}

// Default returns the first backend in priority order that initializes,
// falling back to any other registered backend.
func Default(opts Options) (Backend, error) {
	names := slices.Clone(backendPriority)
	for _, name := range Available() {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	var errs []error
	for _, name := range names {
		if !IsRegistered(name) {
			continue
		}
		b, err := Open(name, opts)
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errs[0])
	}
	return nil, ErrBackendNotAvailable
}
