package smt

import (
	"fmt"
	"sort"
	"sync"

	"go.yaml.in/yaml/v2"
)

// BackendFactory builds a backend from the free-form settings of its
// configuration entry.
type BackendFactory func(settings map[string]any) (*Backend, error)

var backendRegistry = struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}{factories: make(map[string]BackendFactory)}

// RegisterBackendFactory associates a solver name with a factory. Backend
// packages call it from init and are wired up by a blank import.
func RegisterBackendFactory(name string, factory BackendFactory) {
	backendRegistry.mu.Lock()
	defer backendRegistry.mu.Unlock()
	if name == "" {
		panic("smt: backend factory name cannot be empty")
	}
	if _, exists := backendRegistry.factories[name]; exists {
		panic(fmt.Sprintf("smt: backend factory for %q is already registered", name))
	}
	backendRegistry.factories[name] = factory
}

// NewBackend builds the named backend.
func NewBackend(name string, settings map[string]any) (*Backend, error) {
	backendRegistry.mu.RLock()
	factory, ok := backendRegistry.factories[name]
	backendRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown solver %q (registered: %v)", name, RegisteredBackends())
	}
	return factory(settings)
}

// RegisteredBackends returns the registered solver names, sorted.
func RegisteredBackends() []string {
	backendRegistry.mu.RLock()
	defer backendRegistry.mu.RUnlock()
	names := make([]string, 0, len(backendRegistry.factories))
	for name := range backendRegistry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeBackendSettings marshals the untyped settings map into the provided
// struct pointer using YAML for convenience.
func DecodeBackendSettings(settings map[string]any, target any) error {
	if settings == nil {
		return nil
	}
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, target)
}
