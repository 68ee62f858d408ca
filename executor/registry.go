package executor

import (
	"fmt"
	"sync"

	"github.com/taskmesh/taskmesh/routing"
)

// Registry maps executor classes to registered executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[routing.Class]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[routing.Class]Executor)}
}

// Register adds an executor for its class.
// Returns an error if the class is already registered.
func (r *Registry) Register(e Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[e.Class()]; exists {
		return fmt.Errorf("executor class %q already registered", e.Class())
	}
	r.executors[e.Class()] = e
	return nil
}

// Get returns the executor registered for the given class.
func (r *Registry) Get(class routing.Class) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[class]
	return e, ok
}

// List returns all registered executors.
func (r *Registry) List() []Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Executor, 0, len(r.executors))
	for _, e := range r.executors {
		result = append(result, e)
	}
	return result
}

// Unregister removes the executor for a class.
func (r *Registry) Unregister(class routing.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[class]; !exists {
		return fmt.Errorf("executor class %q not registered", class)
	}
	delete(r.executors, class)
	return nil
}
