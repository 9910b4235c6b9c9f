package pagination

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Registry holds one Controller per session so the grid's cursor bookmarks
// survive across requests for the lifetime of the session. Entries expire
// with the session TTL; an expired entry simply restarts the grid at page 0.
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	store *cache.Cache
}

// NewRegistry builds a registry whose controllers live at most ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:   ttl,
		store: cache.New(ttl, 10*time.Minute),
	}
}

// For returns the session's controller, creating one on first use. The TTL
// slides on every access so an active grid never loses its bookmarks.
func (r *Registry) For(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.store.Get(sessionID); ok {
		ctrl := v.(*Controller)
		r.store.Set(sessionID, ctrl, cache.DefaultExpiration)
		return ctrl
	}
	ctrl := NewController(DefaultPageSize)
	r.store.Set(sessionID, ctrl, cache.DefaultExpiration)
	return ctrl
}

// Drop removes the session's controller (sign-out).
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Delete(sessionID)
}
