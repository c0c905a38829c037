package driver

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that opens a new device instance.
// Factories are registered via Register() and called by Open().
type Factory func() (Device, error)

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	drivers    = make(map[string]Factory)
)

// Register registers a device factory with the given name.
// This function is typically called from init() in driver packages,
// following the database/sql driver pattern:
//
//	func init() {
//	    driver.Register("mem", func() (driver.Device, error) {
//	        return memdrv.New(), nil
//	    })
//	}
//
// Register panics if:
//   - factory is nil
//   - a driver with the same name is already registered
//
// This ensures that duplicate registrations are caught early during
// program initialization rather than silently overwriting drivers.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("driver: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("driver: Register called twice for " + name)
	}
	drivers[name] = factory
}

// Unregister removes a driver from the registry.
// This is primarily useful for testing to clean up between tests.
// If the driver is not registered, this is a no-op.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(drivers, name)
}

// Open creates a new device by driver name.
// The name must match a previously registered driver.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := drivers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("driver: unknown driver %q (forgotten import?)", name)
	}
	return factory()
}

// Drivers returns a sorted list of registered driver names.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
