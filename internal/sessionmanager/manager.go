// Package sessionmanager implements the registry of live sessions keyed by
// realm id, plus the userId and socketId reverse indexes the dispatcher uses
// to resolve an inbound connection to its Session without a back-pointer.
package sessionmanager

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"realms/server/internal/apierr"
	"realms/server/internal/proximity"
	"realms/server/internal/realmmap"
	"realms/server/internal/session"
	"realms/server/internal/store"
	"realms/server/logging"
	loggingsession "realms/server/logging/session"
)

// SocketSender is the narrow write-path the manager needs to deliver
// terminal frames when it removes a player on its own initiative (kick,
// eviction) rather than in response to that socket's own read loop.
type SocketSender interface {
	SendKicked(socketID string, reason string)
	SendTerminated(socketID string, code string, reason string)
	Close(socketID string)
}

// LogoutResult reports what a removal operation changed, so the dispatcher
// can broadcast playerLeftRoom and any proximity updates.
type LogoutResult struct {
	RealmID          uuid.UUID
	Session          *session.Session
	Player           session.Player
	Changes          []proximity.Change
	SessionDestroyed bool
}

// Manager is the registry described in §4.4.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session
	byUser   map[uuid.UUID]uuid.UUID // userId -> realmId
	bySocket map[string]uuid.UUID    // socketId -> userId

	radius float64
	pub    logging.Publisher
	sender SocketSender
}

// New constructs an empty Manager.
func New(radius float64, pub logging.Publisher, sender SocketSender) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*session.Session),
		byUser:   make(map[uuid.UUID]uuid.UUID),
		bySocket: make(map[string]uuid.UUID),
		radius:   radius,
		pub:      pub,
		sender:   sender,
	}
}

// SessionOf returns the session a user is currently a member of, if any.
func (m *Manager) SessionOf(userID uuid.UUID) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	realmID, ok := m.byUser[userID]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[realmID]
	return s, ok
}

// SessionByRealmID returns the live session for realmID, if any, without
// requiring a member userId. Used by the HTTP kick fallback of §C.
func (m *Manager) SessionByRealmID(realmID uuid.UUID) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[realmID]
	return s, ok
}

// Diagnostics reports live session and per-realm player counts for the
// read-only diagnostics endpoint.
type Diagnostics struct {
	SessionCount   int
	PlayersByRealm map[string]int
}

func (m *Manager) Diagnostics() Diagnostics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Diagnostics{
		SessionCount:   len(m.sessions),
		PlayersByRealm: make(map[string]int, len(m.sessions)),
	}
	for realmID, s := range m.sessions {
		out.PlayersByRealm[realmID.String()] = s.PlayerCount()
	}
	return out
}

// getOrCreateLocked returns the session for realmID, creating it if absent.
func (m *Manager) getOrCreateLocked(ctx context.Context, realmID uuid.UUID, realm store.Realm, realmMap *realmmap.RealmMap) *session.Session {
	if s, ok := m.sessions[realmID]; ok {
		return s
	}
	s := session.New(realm, realmMap, m.radius, m.pub)
	m.sessions[realmID] = s
	loggingsession.SessionCreated(ctx, m.pub, realmID.String())
	return s
}

// Join implements GetOrCreate followed by AddPlayer, updating the reverse
// indexes atomically with respect to other Manager operations. realmSnapshot
// is ignored if a session already exists for realmID, per §4.4.
func (m *Manager) Join(ctx context.Context, realmID uuid.UUID, realm store.Realm, realmMap *realmmap.RealmMap, socketID string, userID uuid.UUID, username, skin string) (session.Player, []proximity.Change, error) {
	m.mu.Lock()
	s := m.getOrCreateLocked(ctx, realmID, realm, realmMap)
	m.byUser[userID] = realmID
	m.bySocket[socketID] = userID
	m.mu.Unlock()

	player, changes := s.AddPlayer(ctx, socketID, userID, username, skin)
	return player, changes, nil
}

// LogOutBySocketId locates the player owning socketID, removes it from its
// session, and destroys the session if it is now empty. Reports whether
// anything was removed.
func (m *Manager) LogOutBySocketId(ctx context.Context, socketID string) (LogoutResult, bool) {
	m.mu.Lock()
	userID, ok := m.bySocket[socketID]
	if !ok {
		m.mu.Unlock()
		return LogoutResult{}, false
	}
	realmID, ok := m.byUser[userID]
	if !ok {
		delete(m.bySocket, socketID)
		m.mu.Unlock()
		return LogoutResult{}, false
	}
	s, ok := m.sessions[realmID]
	if !ok {
		delete(m.bySocket, socketID)
		delete(m.byUser, userID)
		m.mu.Unlock()
		return LogoutResult{}, false
	}
	delete(m.bySocket, socketID)
	delete(m.byUser, userID)
	m.mu.Unlock()

	player, ok := s.Player(userID)
	if !ok {
		return LogoutResult{}, false
	}
	changes := s.RemovePlayer(ctx, userID, "disconnected")

	result := LogoutResult{RealmID: realmID, Session: s, Player: player, Changes: changes}
	result.SessionDestroyed = m.destroyIfEmpty(ctx, realmID, s)
	return result, true
}

// KickPlayer forcibly removes a player and sends it a terminal kicked
// message before closing its connection.
func (m *Manager) KickPlayer(ctx context.Context, userID uuid.UUID, reason string) (LogoutResult, bool) {
	m.mu.Lock()
	realmID, ok := m.byUser[userID]
	if !ok {
		m.mu.Unlock()
		return LogoutResult{}, false
	}
	s, ok := m.sessions[realmID]
	if !ok {
		delete(m.byUser, userID)
		m.mu.Unlock()
		return LogoutResult{}, false
	}
	m.mu.Unlock()

	player, ok := s.Player(userID)
	if !ok {
		return LogoutResult{}, false
	}

	m.mu.Lock()
	delete(m.byUser, userID)
	delete(m.bySocket, player.SocketID)
	m.mu.Unlock()

	changes := s.RemovePlayer(ctx, userID, reason)

	loggingsession.PlayerKicked(ctx, m.pub, realmID.String(),
		logging.EntityRef{ID: userID.String(), Kind: logging.EntityKindPlayer},
		loggingsession.PlayerKickedPayload{Reason: reason})

	if m.sender != nil {
		m.sender.SendKicked(player.SocketID, reason)
		m.sender.Close(player.SocketID)
	}

	result := LogoutResult{RealmID: realmID, Session: s, Player: player, Changes: changes}
	result.SessionDestroyed = m.destroyIfEmpty(ctx, realmID, s)
	return result, true
}

// EvictRealm kicks every player in a session and destroys it, used when the
// external realm record changes.
func (m *Manager) EvictRealm(ctx context.Context, realmID uuid.UUID, code, reason string) bool {
	m.mu.Lock()
	s, ok := m.sessions[realmID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	players := s.AllPlayers()
	for _, p := range players {
		m.mu.Lock()
		delete(m.byUser, p.UserID)
		delete(m.bySocket, p.SocketID)
		m.mu.Unlock()

		s.RemovePlayer(ctx, p.UserID, reason)
		if m.sender != nil {
			m.sender.SendTerminated(p.SocketID, code, reason)
			m.sender.Close(p.SocketID)
		}
	}

	loggingsession.RealmEvicted(ctx, m.pub, realmID.String(), loggingsession.RealmEvictedPayload{Code: code, Reason: reason})

	m.mu.Lock()
	delete(m.sessions, realmID)
	m.mu.Unlock()
	loggingsession.SessionDestroyed(ctx, m.pub, realmID.String())
	return true
}

// destroyIfEmpty removes a session from the registry once its last player
// has left, releasing its proximity indexes.
func (m *Manager) destroyIfEmpty(ctx context.Context, realmID uuid.UUID, s *session.Session) bool {
	if s.PlayerCount() > 0 {
		return false
	}
	m.mu.Lock()
	delete(m.sessions, realmID)
	m.mu.Unlock()
	loggingsession.SessionDestroyed(ctx, m.pub, realmID.String())
	return true
}

// ErrUnknownSession is returned by callers that expect an already-created session.
var ErrUnknownSession = apierr.New(apierr.KindNotFound, "no active session for realm")
