package workflow

import (
	"sync"

	"dirigent/internal/types"
)

// Registry is the in-memory worker table. Registration happens at startup;
// lookups happen per step.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]types.Worker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]types.Worker)}
}

// Register binds a worker to a name, replacing any previous binding.
func (r *Registry) Register(name string, w types.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[name] = w
}

// Get resolves a worker by name.
func (r *Registry) Get(name string) (types.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// Names returns the registered worker names, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	return names
}
