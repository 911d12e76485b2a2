// Package registry maintains the authoritative table of authenticated
// principals keyed by user id (it holds no socket ids), independent of
// Session.Player: a user may be authenticated but not currently in any
// session, transiently between disconnect and cleanup.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"realms/server/internal/identity"
)

// UserRegistry is the in-memory map of authenticated principals.
type UserRegistry struct {
	mu    sync.RWMutex
	users map[uuid.UUID]identity.Principal
}

// New constructs an empty UserRegistry.
func New() *UserRegistry {
	return &UserRegistry{users: make(map[uuid.UUID]identity.Principal)}
}

// Add registers a principal on authentication success.
func (r *UserRegistry) Add(p identity.Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[p.UserID] = p
}

// Remove drops a principal on disconnect.
func (r *UserRegistry) Remove(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// Get returns the principal for userID, if registered.
func (r *UserRegistry) Get(userID uuid.UUID) (identity.Principal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.users[userID]
	return p, ok
}

// Len reports the number of registered principals.
func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
