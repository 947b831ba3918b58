// Package registry provides the in-process registration oracle used to
// gate task creation and acceptance.
package registry

import "sync"

// Registry is a mutex-guarded membership set.
type Registry struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{members: make(map[string]struct{})}
}

// Register adds addr to the membership set. Idempotent.
func (r *Registry) Register(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[addr] = struct{}{}
}

// Deregister removes addr from the membership set. Idempotent.
func (r *Registry) Deregister(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, addr)
}

// IsRegistered reports whether addr is a member.
func (r *Registry) IsRegistered(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[addr]
	return ok
}
