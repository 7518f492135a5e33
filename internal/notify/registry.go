package notify

import "sync"

// Registry maps channel names to implementations. Channels are a closed
// variant set dispatched by name rather than a type hierarchy.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register adds or replaces a channel under its own name.
func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	r.channels[ch.Name()] = ch
	r.mu.Unlock()
}

// Get looks a channel up by name.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()
	return ch, ok
}

// Names lists the registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
