// Package broadcast fans order events out to live subscriber connections.
package broadcast

import "sync"

// Subscriber is one open client connection. Send must not block: it
// either queues the payload or returns an error (closed connection,
// full buffer), at which point the registry prunes the handle.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Registry tracks live subscriber handles. It carries no business data;
// registration and unregistration are idempotent and may run
// concurrently with store mutations and with broadcast iteration.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscriber)}
}

// Register adds a subscriber. Re-registering the same handle is a no-op.
func (r *Registry) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID()] = sub
}

// Unregister removes a subscriber. Safe to call on an absent handle.
func (r *Registry) Unregister(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, sub.ID())
}

// Snapshot returns the current live handles. Iterating the snapshot
// tolerates concurrent unregistration: a handle removed mid-iteration
// simply fails its send and is pruned.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	return subs
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
