package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/pano"
)

// ErrBackendNotAvailable is returned when a requested backend is not
// registered.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory creates a backend drawing to a surface of the given size.
type Factory func(width, height int) (pano.Backend, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for Default (first registered wins).
	backendPriority = []string{"software"}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
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

// Available returns the registered backend names, sorted.
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

// New creates the backend registered as name.
func New(name string, width, height int) (pano.Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return factory(width, height)
}

// Default creates the best available backend based on priority, falling
// back to the first registered name.
func Default(width, height int) (pano.Backend, error) {
	registryMu.RLock()
	name := ""
	for _, n := range backendPriority {
		if _, ok := backends[n]; ok {
			name = n
			break
		}
	}
	if name == "" {
		for n := range backends {
			if name == "" || n < name {
				name = n
			}
		}
	}
	registryMu.RUnlock()

	if name == "" {
		return nil, ErrBackendNotAvailable
	}
	return New(name, width, height)
}
