// Package dispatch implements the authenticated event dispatcher of §4.6:
// it authenticates a handshake, validates and rate-limits every inbound
// event, mutates session state through internal/sessionmanager, and fans
// out the resulting broadcasts to the room. No apierr.Error ever reaches a
// caller of HandleMessage — a failed event is dropped silently, except that
// a failed joinRealm is answered with `joinFailed` and a rate-limited event
// with an `error` frame.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"realms/server/internal/apierr"
	"realms/server/internal/identity"
	"realms/server/internal/proximity"
	"realms/server/internal/ratelimit"
	"realms/server/internal/realmmap"
	"realms/server/internal/registry"
	"realms/server/internal/session"
	"realms/server/internal/sessionmanager"
	"realms/server/internal/singleflight"
	"realms/server/internal/store"
	"realms/server/internal/validate"
	"realms/server/logging"
	loggingnetwork "realms/server/logging/network"
)

// Sender is the narrow write-path a transport (the websocket handler)
// implements so the dispatcher never depends on the wire format.
type Sender interface {
	Send(socketID string, event string, payload any)
}

// Dispatcher wires together the session state, the out-of-scope identity
// and realm-store collaborators, and the rate limiter into the single
// authenticated entry point a transport calls per connection and per
// message.
type Dispatcher struct {
	sessions     *sessionmanager.Manager
	registry     *registry.UserRegistry
	verifier     identity.Verifier
	realmStore   store.RealmStore
	profileStore store.ProfileStore
	limiter      *ratelimit.Limiter
	joinGuard    *singleflight.JoinGuard
	sender       Sender
	pub          logging.Publisher
}

// New constructs a Dispatcher from its collaborators.
func New(
	sessions *sessionmanager.Manager,
	users *registry.UserRegistry,
	verifier identity.Verifier,
	realmStore store.RealmStore,
	profileStore store.ProfileStore,
	limiter *ratelimit.Limiter,
	joinGuard *singleflight.JoinGuard,
	sender Sender,
	pub logging.Publisher,
) *Dispatcher {
	return &Dispatcher{
		sessions:     sessions,
		registry:     users,
		verifier:     verifier,
		realmStore:   realmStore,
		profileStore: profileStore,
		limiter:      limiter,
		joinGuard:    joinGuard,
		sender:       sender,
		pub:          pub,
	}
}

// HandleConnect performs the transport handshake: it exchanges the bearer
// token and the claimed user id for an authenticated identity.Principal and
// registers it, or reports the auth failure for the transport to close the
// connection with.
func (d *Dispatcher) HandleConnect(ctx context.Context, socketID string, token string, claimedUserID uuid.UUID) (identity.Principal, error) {
	principal, ok := d.verifier.VerifyToken(ctx, token, claimedUserID)
	if !ok {
		loggingnetwork.AuthFailed(ctx, d.pub, socketID, "token verification failed")
		return identity.Principal{}, apierr.New(apierr.KindAuth, "authentication failed")
	}
	d.registry.Add(principal)
	return principal, nil
}

// HandleMessage routes one inbound event to its handler. Per §7 a rejected
// message never reaches the client as a generic error frame — a bad payload
// or an unknown session is dropped silently, and only joinRealm surfaces its
// failure (as joinFailed) since it is the one path a client cannot otherwise
// distinguish from a dropped message. Rate limiting is the sole exception:
// it always reports back so a well-behaved client can back off.
func (d *Dispatcher) HandleMessage(ctx context.Context, socketID string, userID uuid.UUID, event string, payload json.RawMessage) {
	if !d.limiter.Allow(userID, event) {
		loggingnetwork.RateLimited(ctx, d.pub, userID.String(), loggingnetwork.RateLimitedPayload{Event: event})
		d.sendError(socketID, event, apierr.New(apierr.KindRateLimited, "too many requests"))
		return
	}

	var err error
	switch event {
	case InJoinRealm:
		err = d.handleJoinRealm(ctx, socketID, userID, payload)
	case InMovePlayer:
		err = d.handleMovePlayer(ctx, socketID, userID, payload)
	case InTeleport:
		err = d.handleTeleport(ctx, socketID, userID, payload)
	case InChangedSkin:
		err = d.handleChangedSkin(ctx, socketID, userID, payload)
	case InSendMessage:
		err = d.handleSendMessage(ctx, socketID, userID, payload)
	case InKickPlayer:
		err = d.handleKickPlayer(ctx, socketID, userID, payload)
	default:
		err = apierr.New(apierr.KindValidation, "unknown event: "+event)
	}
	if err == nil {
		return
	}

	if apierr.Is(err, apierr.KindValidation) {
		loggingnetwork.ValidationFailed(ctx, d.pub, userID.String(), loggingnetwork.ValidationFailedPayload{Event: event, Reason: err.Error()})
	}

	if event == InJoinRealm {
		message := err.Error()
		if apiErr, ok := err.(*apierr.Error); ok {
			message = apiErr.Message
		}
		d.sender.Send(socketID, OutJoinFailed, message)
		return
	}
	// every other event is dropped silently once its handler has failed
}

// HandleDisconnect removes socketID's player, if any, from its session and
// broadcasts the resulting playerLeftRoom and proximity updates to the
// remaining room occupants, and releases the user's rate-limit buckets and
// registry entry. A socket with no session membership releases nothing.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, socketID string) {
	result, ok := d.sessions.LogOutBySocketId(ctx, socketID)
	if !ok {
		return
	}
	d.limiter.Forget(result.Player.UserID)
	d.registry.Remove(result.Player.UserID)

	if result.Session == nil {
		return
	}
	d.broadcastToRoom(result.Session, result.Player.RoomIndex, "", OutPlayerLeftRoom, PlayerLeftRoomPayload{UserID: result.Player.UserID.String()})
	d.sendProximityUpdates(result.Session, result.Changes)
}

// handleJoinRealm implements the seven-step join protocol of §4.6.1.
func (d *Dispatcher) handleJoinRealm(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	join, err := validate.ParseJoinRealm(raw)
	if err != nil {
		return err
	}

	// Step 1: single-flight guard against a concurrent join for this user.
	release, ok := d.joinGuard.Acquire(userID)
	if !ok {
		return apierr.ErrAlreadyJoining
	}
	defer release()

	principal, ok := d.registry.Get(userID)
	if !ok {
		return apierr.New(apierr.KindAuth, "not authenticated")
	}

	// Step 2: load the realm record and its parsed map.
	realm, ok := d.realmStore.LoadRealm(ctx, join.RealmID)
	if !ok {
		return apierr.ErrRealmNotFound
	}
	realmMap, err := realmmap.Parse(realm.MapData)
	if err != nil {
		return err
	}

	// Step 3: load the caller's profile for their persisted skin.
	profile, ok := d.profileStore.LoadProfile(ctx, userID)
	if !ok {
		return apierr.ErrProfileNotFound
	}

	// Step 4: authorize against the realm's share-link gating.
	if realm.HasShareID() && realm.OwnerID != userID {
		if join.ShareID == uuid.Nil {
			return apierr.ErrShareLinkMissing
		}
		if join.ShareID != realm.ShareID {
			return apierr.ErrShareLinkChanged
		}
	}

	// Step 5: if this user already has a live session membership (duplicate
	// login, possibly in a different realm), remove it before joining fresh.
	// This removal never broadcasts playerLeftRoom: the join that follows
	// produces the single playerJoinedRoom the reconnecting client and the
	// room should see, so there is nothing for the old membership's
	// departure to announce.
	if _, ok := d.sessions.SessionOf(userID); ok {
		d.sessions.KickPlayer(ctx, userID, "replaced by new connection")
	}

	// Step 6: create-or-join the session and add the player.
	player, changes, err := d.sessions.Join(ctx, join.RealmID, realm, realmMap, socketID, userID, principal.Username, profile.Skin)
	if err != nil {
		return err
	}

	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.New(apierr.KindNotFound, "session vanished during join")
	}

	// Step 7: deliver the join outcome. The originator gets a joinedRoom
	// snapshot plus a playerJoinedRoom echo for every peer already in the
	// room; the rest of the room gets a single playerJoinedRoom for the
	// new arrival.
	d.sender.Send(socketID, OutJoinedRoom, JoinedRoomPayload{
		Realm:     RealmInfo{ID: realm.ID.String(), OwnerID: realm.OwnerID.String()},
		Player:    toPlayerInfo(player),
		RoomIndex: player.RoomIndex,
	})

	for _, peer := range s.PlayersInRoom(player.RoomIndex) {
		if peer.UserID == userID {
			continue
		}
		d.sender.Send(socketID, OutPlayerJoinedRoom, toPlayerInfo(peer))
	}

	for _, otherSocket := range s.SocketsInRoom(player.RoomIndex) {
		if otherSocket == socketID {
			continue
		}
		d.sender.Send(otherSocket, OutPlayerJoinedRoom, toPlayerInfo(player))
	}

	d.sendProximityUpdates(s, changes)
	return nil
}

func (d *Dispatcher) handleMovePlayer(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	move, err := validate.ParseMovePlayer(raw)
	if err != nil {
		return err
	}
	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	changes, err := s.MovePlayer(userID, move.X, move.Y)
	if err != nil {
		return err
	}
	player, _ := s.Player(userID)
	d.broadcastToRoom(s, player.RoomIndex, socketID, OutPlayerMoved, PlayerMovedPayload{UID: userID.String(), X: move.X, Y: move.Y})
	d.sendProximityUpdates(s, changes)
	return nil
}

// handleTeleport moves a player between rooms and broadcasts a single
// playerTeleported frame to the union of the old and new room's sockets,
// excluding the originator, per §4.6 point 3 and concrete scenario 4: the
// old room's occupants need the frame to learn the player left, and the new
// room's occupants need it to learn the player arrived and where.
func (d *Dispatcher) handleTeleport(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	tp, err := validate.ParseTeleport(raw)
	if err != nil {
		return err
	}
	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	player, ok := s.Player(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	oldRoom := player.RoomIndex

	changes, err := s.ChangeRoom(userID, tp.RoomIndex, tp.X, tp.Y)
	if err != nil {
		return err
	}

	payload := PlayerTeleportedPayload{UID: userID.String(), X: tp.X, Y: tp.Y, RoomIndex: tp.RoomIndex}
	d.broadcastToRoom(s, oldRoom, socketID, OutPlayerTeleported, payload)
	if tp.RoomIndex != oldRoom {
		d.broadcastToRoom(s, tp.RoomIndex, socketID, OutPlayerTeleported, payload)
	}

	d.sendProximityUpdates(s, changes)
	return nil
}

func (d *Dispatcher) handleChangedSkin(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	skin, err := validate.ParseChangedSkin(raw)
	if err != nil {
		return err
	}
	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	if err := s.SetSkin(userID, skin.Skin); err != nil {
		return err
	}
	player, _ := s.Player(userID)
	d.broadcastToRoom(s, player.RoomIndex, socketID, OutPlayerChangedSkin, PlayerChangedSkinPayload{UID: userID.String(), Skin: skin.Skin})
	return nil
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	msg, err := validate.ParseSendMessage(raw)
	if err != nil {
		return err
	}
	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	player, ok := s.Player(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	d.broadcastToRoom(s, player.RoomIndex, socketID, OutReceiveMessage, ReceiveMessagePayload{UID: userID.String(), Message: msg.Message})
	return nil
}

// handleKickPlayer is the owner-initiated moderation path. Unlike the
// pre-join replacement kick in handleJoinRealm, this always broadcasts the
// departure: the kicked player was a known, visible occupant of the room.
func (d *Dispatcher) handleKickPlayer(ctx context.Context, socketID string, userID uuid.UUID, raw json.RawMessage) error {
	kick, err := validate.ParseKickPlayer(raw)
	if err != nil {
		return err
	}
	s, ok := d.sessions.SessionOf(userID)
	if !ok {
		return apierr.ErrUnknownUser
	}
	if s.Realm().OwnerID != userID {
		return apierr.New(apierr.KindPermission, "only the realm owner may kick players")
	}
	if _, ok := s.Player(kick.UID); !ok {
		return apierr.New(apierr.KindNotFound, "player not in this realm")
	}

	result, ok := d.sessions.KickPlayer(ctx, kick.UID, "kicked by owner")
	if !ok {
		return apierr.New(apierr.KindNotFound, "player not in this realm")
	}
	d.registry.Remove(kick.UID)
	d.limiter.Forget(kick.UID)

	d.broadcastToRoom(s, result.Player.RoomIndex, "", OutPlayerLeftRoom, PlayerLeftRoomPayload{UserID: kick.UID.String()})
	d.sendProximityUpdates(s, result.Changes)
	return nil
}

// broadcastToRoom sends event to every socket currently in roomIndex except
// excludeSocket, per §4.6 point 3's "except the originator's own socket"
// rule. Pass "" when there is no originator to exclude, e.g. a departure
// broadcast where the departing socket has already been removed from the
// room.
func (d *Dispatcher) broadcastToRoom(s *session.Session, roomIndex int, excludeSocket string, event string, payload any) {
	for _, socketID := range s.SocketsInRoom(roomIndex) {
		if socketID == excludeSocket {
			continue
		}
		d.sender.Send(socketID, event, payload)
	}
}

// sendProximityUpdates sends each affected player its own new proximityId.
// A proximityUpdate is targeted, not broadcast: only the player whose group
// changed needs to know its own new id, per §4.6.3.
func (d *Dispatcher) sendProximityUpdates(s *session.Session, changes []proximity.Change) {
	for _, c := range changes {
		userID, err := uuid.Parse(c.UserID)
		if err != nil {
			continue
		}
		player, ok := s.Player(userID)
		if !ok {
			continue
		}
		d.sender.Send(player.SocketID, OutProximityUpdate, ProximityUpdatePayload{ProximityID: c.GroupID})
	}
}

func (d *Dispatcher) sendError(socketID string, event string, err error) {
	message := err.Error()
	code := CodeAuthError
	if apiErr, ok := err.(*apierr.Error); ok {
		message = apiErr.Message
		switch apiErr.Kind {
		case apierr.KindRateLimited:
			code = CodeRateLimited
		case apierr.KindPermission:
			code = CodePermissionDenied
		default:
			code = ""
		}
	}
	d.sender.Send(socketID, OutError, ErrorPayload{Event: event, Code: code, Message: message})
}
