// Package singleflight implements the small guarded set of user ids with an
// in-progress join, using a scoped-acquisition pattern so a release always
// runs even if the caller panics mid-join.
package singleflight

import (
	"sync"

	"github.com/google/uuid"
)

// JoinGuard tracks which users currently have a join in flight.
type JoinGuard struct {
	mu         sync.Mutex
	inProgress map[uuid.UUID]struct{}
}

// New constructs an empty JoinGuard.
func New() *JoinGuard {
	return &JoinGuard{inProgress: make(map[uuid.UUID]struct{})}
}

// Acquire marks userID as joining. If a join is already in progress for
// userID, ok is false and release is nil. Otherwise the caller must
// `defer release()` to guarantee the marker clears on every exit path,
// including panics.
func (g *JoinGuard) Acquire(userID uuid.UUID) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.inProgress[userID]; exists {
		return nil, false
	}
	g.inProgress[userID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inProgress, userID)
		g.mu.Unlock()
	}, true
}
