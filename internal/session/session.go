// Package session implements the per-realm runtime state: players, their
// rooms and positions, and one proximity index per room. A Session is
// created for a realm not currently hosted and destroyed when its last
// player leaves; the realm snapshot it holds is fixed for its lifetime.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"realms/server/internal/apierr"
	"realms/server/internal/proximity"
	"realms/server/internal/realmmap"
	"realms/server/internal/store"
	"realms/server/logging"
	loggingsession "realms/server/logging/session"
)

// Player is one connected participant in a Session.
type Player struct {
	UserID      uuid.UUID
	Username    string
	Skin        string
	SocketID    string
	RoomIndex   int
	X, Y        float64
	ProximityID string
}

// Session owns the players and per-room proximity state for one realm.
type Session struct {
	mu sync.Mutex

	realm    store.Realm
	realmMap *realmmap.RealmMap
	radius   float64
	pub      logging.Publisher

	players   map[uuid.UUID]*Player
	proximity map[int]*proximity.Index
}

// New constructs a Session for the given realm snapshot. The snapshot is
// fixed for the session's lifetime, per the invariant in §3 of the design.
func New(realm store.Realm, realmMap *realmmap.RealmMap, radius float64, pub logging.Publisher) *Session {
	if radius <= 0 {
		radius = proximity.DefaultRadius
	}
	return &Session{
		realm:     realm,
		realmMap:  realmMap,
		radius:    radius,
		pub:       pub,
		players:   make(map[uuid.UUID]*Player),
		proximity: make(map[int]*proximity.Index),
	}
}

// Realm returns the immutable realm snapshot this session was created with.
func (s *Session) Realm() store.Realm {
	return s.realm
}

// RealmMap returns the parsed map this session was created with.
func (s *Session) RealmMap() *realmmap.RealmMap {
	return s.realmMap
}

func (s *Session) roomIndex(roomIndex int) *proximity.Index {
	idx, ok := s.proximity[roomIndex]
	if !ok {
		idx = proximity.New(s.radius)
		s.proximity[roomIndex] = idx
	}
	return idx
}

// AddPlayer creates a Player at the realm's room-0 spawn point and inserts
// it into that room's proximity index.
func (s *Session) AddPlayer(ctx context.Context, socketID string, userID uuid.UUID, username, skin string) (Player, []proximity.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spawnX, spawnY := s.realmMap.Spawn(0)
	player := &Player{
		UserID:      userID,
		Username:    username,
		Skin:        skin,
		SocketID:    socketID,
		RoomIndex:   0,
		X:           spawnX,
		Y:           spawnY,
		ProximityID: proximity.None,
	}
	s.players[userID] = player

	changes := s.applyChanges(0, s.roomIndex(0).Insert(userID.String(), spawnX, spawnY))

	loggingsession.PlayerJoined(ctx, s.pub, s.realm.ID.String(),
		logging.EntityRef{ID: userID.String(), Kind: logging.EntityKindPlayer},
		loggingsession.PlayerJoinedPayload{RoomIndex: 0, SpawnX: spawnX, SpawnY: spawnY})

	return *player, changes
}

// RemovePlayer removes a player from the player map and its room's
// proximity index.
func (s *Session) RemovePlayer(ctx context.Context, userID uuid.UUID, reason string) []proximity.Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[userID]
	if !ok {
		return nil
	}
	delete(s.players, userID)

	changes := s.applyChanges(player.RoomIndex, s.roomIndex(player.RoomIndex).Remove(userID.String()))

	loggingsession.PlayerLeft(ctx, s.pub, s.realm.ID.String(),
		logging.EntityRef{ID: userID.String(), Kind: logging.EntityKindPlayer},
		loggingsession.PlayerLeftPayload{Reason: reason})

	return changes
}

// MovePlayer updates a player's position within its current room. Coordinate
// validity is the dispatcher's responsibility; Session trusts its input.
func (s *Session) MovePlayer(userID uuid.UUID, x, y float64) ([]proximity.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[userID]
	if !ok {
		return nil, apierr.ErrUnknownUser
	}
	player.X, player.Y = x, y
	changes := s.applyChanges(player.RoomIndex, s.roomIndex(player.RoomIndex).Move(userID.String(), x, y))
	return changes, nil
}

// ChangeRoom moves a player to a different room, removing it from the old
// room's proximity index and inserting it into the new one.
func (s *Session) ChangeRoom(userID uuid.UUID, roomIndex int, x, y float64) ([]proximity.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[userID]
	if !ok {
		return nil, apierr.ErrUnknownUser
	}
	if !s.realmMap.ValidRoom(roomIndex) {
		return nil, apierr.ErrBadRoom
	}

	oldRoom := player.RoomIndex
	removeChanges := s.applyChanges(oldRoom, s.roomIndex(oldRoom).Remove(userID.String()))

	player.RoomIndex = roomIndex
	player.X, player.Y = x, y
	insertChanges := s.applyChanges(roomIndex, s.roomIndex(roomIndex).Insert(userID.String(), x, y))

	return append(removeChanges, insertChanges...), nil
}

// SetSkin updates a player's skin.
func (s *Session) SetSkin(userID uuid.UUID, skin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[userID]
	if !ok {
		return apierr.ErrUnknownUser
	}
	player.Skin = skin
	return nil
}

// Player returns a copy of the current state for userID.
func (s *Session) Player(userID uuid.UUID) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[userID]
	if !ok {
		return Player{}, false
	}
	return *player, true
}

// PlayersInRoom enumerates players currently in roomIndex.
func (s *Session) PlayersInRoom(roomIndex int) []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Player
	for _, p := range s.players {
		if p.RoomIndex == roomIndex {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out
}

// SocketsInRoom projects PlayersInRoom to socket ids.
func (s *Session) SocketsInRoom(roomIndex int) []string {
	players := s.PlayersInRoom(roomIndex)
	sockets := make([]string, 0, len(players))
	for _, p := range players {
		sockets = append(sockets, p.SocketID)
	}
	return sockets
}

// PlayerCount reports the number of players currently in the session.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// AllPlayers returns a snapshot of every player in the session.
func (s *Session) AllPlayers() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out
}

// applyChanges writes back the newly computed proximityId for every changed
// player and returns only the changes that differ from the player's prior
// ProximityID (a newcomer already starts at proximity.None). Must be called
// with s.mu held.
func (s *Session) applyChanges(roomIndex int, changes []proximity.Change) []proximity.Change {
	var applied []proximity.Change
	for _, c := range changes {
		id, err := uuid.Parse(c.UserID)
		if err != nil {
			continue
		}
		if p, ok := s.players[id]; ok && p.ProximityID != c.GroupID {
			p.ProximityID = c.GroupID
			applied = append(applied, c)
		}
	}
	return applied
}
