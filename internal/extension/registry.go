package extension

import "sync"

// Registry holds extension factories in registration order. The position of
// a factory is its extension id, identical on every connection for the
// lifetime of the process.
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Spawn instantiates one handler per registered factory, indexed by
// extension id.
func (r *Registry) Spawn() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.factories))
	for i, f := range r.factories {
		out[i] = f()
	}
	return out
}
