package db

import (
	"fmt"
	"sync"
)

// Factory opens (or creates) a database at location.
// The meaning of location is up to the implementation (a directory, a file or nothing at all).
type Factory func(location string) (KVDB, error)

var (
	registryMu sync.RWMutex
	registry   = map[Implementation]Factory{}
)

// Register makes an implementation available to Open.
// It is meant to be called from the init function of an engine package.
// Registering the same implementation twice panics.
func Register(impl Implementation, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic(fmt.Sprintf("db: Register factory for %q is nil", impl))
	}
	if _, dup := registry[impl]; dup {
		panic(fmt.Sprintf("db: Register called twice for %q", impl))
	}
	registry[impl] = factory
}

// Open opens a database of the given implementation at location.
// Implementations that were not compiled in (e.g. rocksdb without the build tag) return an error.
func Open(impl Implementation, location string) (KVDB, error) {
	registryMu.RLock()
	factory, ok := registry[impl]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database implementation %q (available: %v)", impl, Implementations())
	}
	return factory(location)
}

// Implementations returns all registered implementations in lexical order.
func Implementations() []Implementation {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedImplementations(registry)
}
