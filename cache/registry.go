package cache

import (
	"fmt"
	"sync"
)

// Constructor builds a cache backend from its configuration section.
type Constructor func(conf map[string]interface{}) (Cache, error)

// NotRegisteredError reports a configuration that names a cache
// implementation no constructor was registered for.
type NotRegisteredError struct {
	Implementation string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("cache implementation not registered: %s", e.Implementation)
}

// AlreadyRegisteredError reports a Register call reusing a name.
type AlreadyRegisteredError struct {
	Implementation string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("cache implementation already registered: %s", e.Implementation)
}

// Registry maps implementation names to cache constructors. It is meant to
// be populated once at process initialization and consulted at
// configuration time; registration is not expected during normal operation.
type Registry struct {
	mu    sync.Mutex
	impls map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{impls: map[string]Constructor{}}
}

// Register records a constructor under an implementation name. It fails
// with *AlreadyRegisteredError when the name is taken.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.impls[name]; ok {
		return &AlreadyRegisteredError{Implementation: name}
	}
	r.impls[name] = ctor
	return nil
}

// New builds a cache from a configuration map. conf["implementation"] names
// the backend; conf[<name>] holds that backend's own settings, for example:
//
//	{
//	    "implementation": "memory",
//	    "memory": {"ttl": 300},
//	}
//
// It fails with *NotRegisteredError when the named implementation was never
// registered.
func (r *Registry) New(conf map[string]interface{}) (Cache, error) {
	name, ok := conf["implementation"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("cache configuration missing implementation name")
	}

	r.mu.Lock()
	ctor, ok := r.impls[name]
	r.mu.Unlock()
	if !ok {
		return nil, &NotRegisteredError{Implementation: name}
	}

	sub, _ := conf[name].(map[string]interface{})
	return ctor(sub)
}

// defaultRegistry backs the package-level Register and New.
var defaultRegistry = NewRegistry()

// Register records a constructor in the default registry.
func Register(name string, ctor Constructor) error {
	return defaultRegistry.Register(name, ctor)
}

// New builds a cache from the default registry. See Registry.New for the
// configuration shape.
func New(conf map[string]interface{}) (Cache, error) {
	return defaultRegistry.New(conf)
}
