package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"realms/server/internal/apierr"
	"realms/server/internal/identity"
	"realms/server/internal/ratelimit"
	"realms/server/internal/registry"
	"realms/server/internal/sessionmanager"
	"realms/server/internal/singleflight"
	"realms/server/internal/store"
	"realms/server/logging"
)

// sentMessage records one Sender.Send call for assertions.
type sentMessage struct {
	socketID string
	event    string
	payload  any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) Send(socketID string, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{socketID: socketID, event: event, payload: payload})
}

func (f *fakeSender) to(socketID string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.socketID == socketID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) events(socketID string) []string {
	var out []string
	for _, m := range f.to(socketID) {
		out = append(out, m.event)
	}
	return out
}

// SendKicked, SendTerminated and Close satisfy sessionmanager.SocketSender so
// the same fake can back both the dispatcher and the session manager in
// these tests.
func (f *fakeSender) SendKicked(socketID string, reason string) {
	f.Send(socketID, OutSessionTerminated, SessionTerminatedPayload{Code: CodeOwnerKicked, Reason: reason})
}

func (f *fakeSender) SendTerminated(socketID string, code string, reason string) {
	f.Send(socketID, OutSessionTerminated, SessionTerminatedPayload{Code: code, Reason: reason})
}

func (f *fakeSender) Close(socketID string) {}

const testRoomJSON = `{"rooms":[{"spawn":{"x":0,"y":0},"barriers":[]},{"spawn":{"x":5,"y":5},"barriers":[]}]}`

type harness struct {
	dispatcher *Dispatcher
	sessions   *sessionmanager.Manager
	users      *registry.UserRegistry
	sender     *fakeSender
	realms     map[uuid.UUID]store.Realm
	profiles   map[uuid.UUID]store.Profile
	principals map[uuid.UUID]identity.Principal
}

func newHarness(t *testing.T, radius float64) *harness {
	t.Helper()
	sender := &fakeSender{}
	sessions := sessionmanager.New(radius, logging.NopPublisher(), sender)
	users := registry.New()
	limiter := ratelimit.New(nil)
	joinGuard := singleflight.New()

	h := &harness{
		sessions:   sessions,
		users:      users,
		sender:     sender,
		realms:     make(map[uuid.UUID]store.Realm),
		profiles:   make(map[uuid.UUID]store.Profile),
		principals: make(map[uuid.UUID]identity.Principal),
	}

	verifier := identity.VerifierFunc(func(ctx context.Context, token string, claimedUserID uuid.UUID) (identity.Principal, bool) {
		p, ok := h.principals[claimedUserID]
		return p, ok
	})
	realmStore := store.RealmStoreFunc(func(ctx context.Context, realmID uuid.UUID) (store.Realm, bool) {
		r, ok := h.realms[realmID]
		return r, ok
	})
	profileStore := store.ProfileStoreFunc(func(ctx context.Context, userID uuid.UUID) (store.Profile, bool) {
		p, ok := h.profiles[userID]
		return p, ok
	})

	h.dispatcher = New(sessions, users, verifier, realmStore, profileStore, limiter, joinGuard, sender, logging.NopPublisher())
	return h
}

func (h *harness) addUser(username string) uuid.UUID {
	id := uuid.New()
	h.principals[id] = identity.Principal{UserID: id, Username: username}
	return id
}

func (h *harness) addRealm(ownerID uuid.UUID) store.Realm {
	realm := store.Realm{ID: uuid.New(), OwnerID: ownerID, MapData: []byte(testRoomJSON)}
	h.realms[realm.ID] = realm
	return realm
}

func (h *harness) connect(t *testing.T, socketID string, userID uuid.UUID) {
	t.Helper()
	if _, err := h.dispatcher.HandleConnect(context.Background(), socketID, "any-token", userID); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
}

func (h *harness) join(socketID string, userID uuid.UUID, realmID uuid.UUID) {
	raw, _ := json.Marshal(map[string]string{"realmId": realmID.String()})
	h.dispatcher.HandleMessage(context.Background(), socketID, userID, InJoinRealm, raw)
}

func TestSoloJoinReceivesJoinedRoomWithNoGroup(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	events := h.sender.events("socket-1")
	if len(events) != 1 || events[0] != OutJoinedRoom {
		t.Fatalf("expected a single joinedRoom event, got %v", events)
	}
	payload := h.sender.to("socket-1")[0].payload.(JoinedRoomPayload)
	if payload.Player.ProximityID != "none" {
		t.Fatalf("expected solo joiner to have no proximity group, got %q", payload.Player.ProximityID)
	}
}

func TestSecondPlayerInProximityFormsGroup(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	bob := h.addUser("bob")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.profiles[bob] = store.Profile{UserID: bob, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-a", alice)
	h.join("socket-a", alice, realm.ID)
	h.connect(t, "socket-b", bob)
	h.join("socket-b", bob, realm.ID)

	moveRaw, _ := json.Marshal(map[string]float64{"x": 1, "y": 1})
	h.dispatcher.HandleMessage(context.Background(), "socket-a", alice, InMovePlayer, moveRaw)
	h.dispatcher.HandleMessage(context.Background(), "socket-b", bob, InMovePlayer, moveRaw)

	found := false
	for _, m := range h.sender.to("socket-a") {
		if m.event == OutProximityUpdate {
			if p, ok := m.payload.(ProximityUpdatePayload); ok && p.ProximityID != "none" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected alice to receive a non-empty proximityUpdate once bob spawned next to her")
	}

	bEvents := h.sender.events("socket-a")
	hasJoined := false
	for _, e := range bEvents {
		if e == OutPlayerJoinedRoom {
			hasJoined = true
		}
	}
	if !hasJoined {
		t.Fatalf("expected alice's socket to have seen playerJoinedRoom for bob, got %v", bEvents)
	}
}

func TestMovePlayerIsNotEchoedToOriginator(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	bob := h.addUser("bob")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.profiles[bob] = store.Profile{UserID: bob, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-a", alice)
	h.join("socket-a", alice, realm.ID)
	h.connect(t, "socket-b", bob)
	h.join("socket-b", bob, realm.ID)

	moveRaw, _ := json.Marshal(map[string]float64{"x": 1, "y": 1})
	h.dispatcher.HandleMessage(context.Background(), "socket-a", alice, InMovePlayer, moveRaw)

	for _, m := range h.sender.to("socket-a") {
		if m.event == OutPlayerMoved {
			t.Fatalf("expected alice's own move to never be echoed back to her own socket")
		}
	}
	found := false
	for _, m := range h.sender.to("socket-b") {
		if m.event == OutPlayerMoved {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bob to observe alice's playerMoved")
	}
}

func TestChangedSkinIsNotEchoedToOriginator(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	before := len(h.sender.to("socket-1"))
	skinRaw, _ := json.Marshal("blue")
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InChangedSkin, skinRaw)
	for _, m := range h.sender.to("socket-1")[before:] {
		if m.event == OutPlayerChangedSkin {
			t.Fatalf("expected changedSkin to never be echoed back to its own originator")
		}
	}
}

func TestSendMessageIsNotEchoedToOriginator(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	bob := h.addUser("bob")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.profiles[bob] = store.Profile{UserID: bob, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-a", alice)
	h.join("socket-a", alice, realm.ID)
	h.connect(t, "socket-b", bob)
	h.join("socket-b", bob, realm.ID)

	before := len(h.sender.to("socket-a"))
	msgRaw, _ := json.Marshal("hello")
	h.dispatcher.HandleMessage(context.Background(), "socket-a", alice, InSendMessage, msgRaw)
	for _, m := range h.sender.to("socket-a")[before:] {
		if m.event == OutReceiveMessage {
			t.Fatalf("expected sendMessage to never be echoed back to its own originator")
		}
	}
	found := false
	for _, m := range h.sender.to("socket-b") {
		if m.event == OutReceiveMessage {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bob to receive alice's message")
	}
}

func TestTeleportNotifiesBothOldAndNewRoomExceptOriginator(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	bob := h.addUser("bob")
	carol := h.addUser("carol")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.profiles[bob] = store.Profile{UserID: bob, Skin: "default"}
	h.profiles[carol] = store.Profile{UserID: carol, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-a", alice)
	h.join("socket-a", alice, realm.ID)
	h.connect(t, "socket-b", bob)
	h.join("socket-b", bob, realm.ID)

	h.connect(t, "socket-c", carol)
	h.join("socket-c", carol, realm.ID)
	teleportCarolRaw, _ := json.Marshal(map[string]any{"x": 5, "y": 5, "roomIndex": 1})
	h.dispatcher.HandleMessage(context.Background(), "socket-c", carol, InTeleport, teleportCarolRaw)

	teleportAliceRaw, _ := json.Marshal(map[string]any{"x": 5, "y": 5, "roomIndex": 1})
	h.dispatcher.HandleMessage(context.Background(), "socket-a", alice, InTeleport, teleportAliceRaw)

	// bob stayed behind in room 0: he must learn alice left via playerTeleported.
	bobSawTeleport := false
	for _, m := range h.sender.to("socket-b") {
		if m.event == OutPlayerTeleported {
			if p, ok := m.payload.(PlayerTeleportedPayload); ok && p.UID == alice.String() {
				bobSawTeleport = true
			}
		}
	}
	if !bobSawTeleport {
		t.Fatalf("expected bob, left behind in the old room, to observe alice's playerTeleported")
	}

	// carol was already in room 1: she must learn alice arrived via playerTeleported.
	carolSawTeleport := false
	for _, m := range h.sender.to("socket-c") {
		if m.event == OutPlayerTeleported {
			if p, ok := m.payload.(PlayerTeleportedPayload); ok && p.UID == alice.String() {
				carolSawTeleport = true
			}
		}
	}
	if !carolSawTeleport {
		t.Fatalf("expected carol, already in the new room, to observe alice's playerTeleported")
	}

	// alice is the originator: she must never receive her own playerTeleported.
	for _, m := range h.sender.to("socket-a") {
		if m.event == OutPlayerTeleported {
			if p, ok := m.payload.(PlayerTeleportedPayload); ok && p.UID == alice.String() {
				t.Fatalf("expected alice to never receive her own playerTeleported")
			}
		}
	}
}

func TestDuplicateLoginKicksOldSocketAndRejoinsCleanly(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	h.connect(t, "socket-2", alice)
	h.join("socket-2", alice, realm.ID)

	if events := h.sender.events("socket-1"); len(events) != 2 || events[0] != OutJoinedRoom || events[1] != OutSessionTerminated {
		t.Fatalf("expected socket-1 to receive its own joinedRoom followed by a terminal kick, got %v", events)
	}
	events := h.sender.events("socket-2")
	if len(events) != 1 || events[0] != OutJoinedRoom {
		t.Fatalf("expected socket-2 to receive a fresh joinedRoom, got %v", events)
	}
	s, ok := h.sessions.SessionOf(alice)
	if !ok {
		t.Fatalf("expected alice to still have a session after rejoin")
	}
	player, _ := s.Player(alice)
	if player.SocketID != "socket-2" {
		t.Fatalf("expected the session to now track socket-2, got %s", player.SocketID)
	}
}

func TestJoinWithoutShareIDOnGatedRealmFails(t *testing.T) {
	h := newHarness(t, 150)
	owner := h.addUser("owner")
	guest := h.addUser("guest")
	h.profiles[guest] = store.Profile{UserID: guest, Skin: "default"}
	realm := store.Realm{ID: uuid.New(), OwnerID: owner, ShareID: uuid.New(), MapData: []byte(testRoomJSON)}
	h.realms[realm.ID] = realm

	h.connect(t, "socket-1", guest)
	h.join("socket-1", guest, realm.ID)

	events := h.sender.events("socket-1")
	if len(events) != 1 || events[0] != OutJoinFailed {
		t.Fatalf("expected a joinFailed event for a missing share id, got %v", events)
	}
	if _, ok := h.sessions.SessionOf(guest); ok {
		t.Fatalf("expected no session to exist for a rejected join")
	}
}

func TestJoinWithCorrectShareIDSucceeds(t *testing.T) {
	h := newHarness(t, 150)
	owner := h.addUser("owner")
	guest := h.addUser("guest")
	h.profiles[guest] = store.Profile{UserID: guest, Skin: "default"}
	shareID := uuid.New()
	realm := store.Realm{ID: uuid.New(), OwnerID: owner, ShareID: shareID, MapData: []byte(testRoomJSON)}
	h.realms[realm.ID] = realm

	h.connect(t, "socket-1", guest)
	raw, _ := json.Marshal(map[string]string{"realmId": realm.ID.String(), "shareId": shareID.String()})
	h.dispatcher.HandleMessage(context.Background(), "socket-1", guest, InJoinRealm, raw)

	events := h.sender.events("socket-1")
	if len(events) != 1 || events[0] != OutJoinedRoom {
		t.Fatalf("expected joinedRoom for a correct share id, got %v", events)
	}
}

func TestUnauthenticatedConnectReportsAuthFailure(t *testing.T) {
	h := newHarness(t, 150)
	stranger := uuid.New()
	if _, err := h.dispatcher.HandleConnect(context.Background(), "socket-1", "bad-token", stranger); err == nil {
		t.Fatalf("expected an auth error for an unregistered principal")
	} else if !apierr.Is(err, apierr.KindAuth) {
		t.Fatalf("expected a KindAuth error, got %v", err)
	}
}

func TestRateLimitedEventAlwaysReportsBack(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	skinRaw, _ := json.Marshal("blue")
	// changedSkin allows 1/sec; the second call in the same instant must be
	// rejected and reported, unlike every other per-event failure.
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InChangedSkin, skinRaw)
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InChangedSkin, skinRaw)

	var sawRateLimited bool
	for _, m := range h.sender.to("socket-1") {
		if m.event == OutError {
			if p, ok := m.payload.(ErrorPayload); ok && p.Code == CodeRateLimited {
				sawRateLimited = true
			}
		}
	}
	if !sawRateLimited {
		t.Fatalf("expected a RATE_LIMITED error frame once the changedSkin bucket is exhausted")
	}
}

func TestMalformedMovePlayerIsDroppedSilently(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	before := len(h.sender.to("socket-1"))
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InMovePlayer, json.RawMessage(`{"x":"not-a-number"}`))
	after := len(h.sender.to("socket-1"))
	if after != before {
		t.Fatalf("expected a malformed movePlayer to produce no outbound frame, sent %d new messages", after-before)
	}
}

func TestOwnerKickBroadcastsPlayerLeftRoom(t *testing.T) {
	h := newHarness(t, 150)
	owner := h.addUser("owner")
	guest := h.addUser("guest")
	h.profiles[owner] = store.Profile{UserID: owner, Skin: "default"}
	h.profiles[guest] = store.Profile{UserID: guest, Skin: "default"}
	realm := h.addRealm(owner)

	h.connect(t, "socket-owner", owner)
	h.join("socket-owner", owner, realm.ID)
	h.connect(t, "socket-guest", guest)
	h.join("socket-guest", guest, realm.ID)

	kickRaw, _ := json.Marshal(map[string]string{"uid": guest.String()})
	h.dispatcher.HandleMessage(context.Background(), "socket-owner", owner, InKickPlayer, kickRaw)

	found := false
	for _, m := range h.sender.to("socket-owner") {
		if m.event == OutPlayerLeftRoom {
			if p, ok := m.payload.(PlayerLeftRoomPayload); ok && p.UserID == guest.String() {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected the owner's socket to observe playerLeftRoom for the kicked guest")
	}
	if _, ok := h.sessions.SessionOf(guest); ok {
		t.Fatalf("expected guest to have no session membership after being kicked")
	}
}

func TestNonOwnerKickIsDroppedSilently(t *testing.T) {
	h := newHarness(t, 150)
	owner := h.addUser("owner")
	guest := h.addUser("guest")
	bystander := h.addUser("bystander")
	h.profiles[owner] = store.Profile{UserID: owner, Skin: "default"}
	h.profiles[guest] = store.Profile{UserID: guest, Skin: "default"}
	h.profiles[bystander] = store.Profile{UserID: bystander, Skin: "default"}
	realm := h.addRealm(owner)

	h.connect(t, "socket-owner", owner)
	h.join("socket-owner", owner, realm.ID)
	h.connect(t, "socket-guest", guest)
	h.join("socket-guest", guest, realm.ID)
	h.connect(t, "socket-bystander", bystander)
	h.join("socket-bystander", bystander, realm.ID)

	before := len(h.sender.to("socket-bystander"))
	kickRaw, _ := json.Marshal(map[string]string{"uid": guest.String()})
	h.dispatcher.HandleMessage(context.Background(), "socket-bystander", bystander, InKickPlayer, kickRaw)
	after := len(h.sender.to("socket-bystander"))
	if after != before {
		t.Fatalf("expected a non-owner's kick attempt to be dropped, got %d new messages", after-before)
	}
	if _, ok := h.sessions.SessionOf(guest); !ok {
		t.Fatalf("expected guest to remain in the session after a rejected kick")
	}
}

func TestDisconnectBroadcastsPlayerLeftRoomToRemainingRoom(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	bob := h.addUser("bob")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.profiles[bob] = store.Profile{UserID: bob, Skin: "default"}
	realm := h.addRealm(alice)

	h.connect(t, "socket-a", alice)
	h.join("socket-a", alice, realm.ID)
	h.connect(t, "socket-b", bob)
	h.join("socket-b", bob, realm.ID)

	h.dispatcher.HandleDisconnect(context.Background(), "socket-b")

	found := false
	for _, m := range h.sender.to("socket-a") {
		if m.event == OutPlayerLeftRoom {
			if p, ok := m.payload.(PlayerLeftRoomPayload); ok && p.UserID == bob.String() {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected alice to observe bob's departure")
	}
	if _, ok := h.users.Get(bob); ok {
		t.Fatalf("expected bob to be removed from the user registry on disconnect")
	}
}

func TestUnknownEventNameIsDroppedSilently(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	before := len(h.sender.to("socket-1"))
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, "notAnEvent", json.RawMessage(`{}`))
	after := len(h.sender.to("socket-1"))
	if after != before {
		t.Fatalf("expected an unknown event to be dropped, got %d new messages", after-before)
	}
}

func TestJoinAgainstUnknownRealmFails(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	h.connect(t, "socket-1", alice)

	raw, _ := json.Marshal(map[string]string{"realmId": uuid.New().String()})
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InJoinRealm, raw)

	events := h.sender.events("socket-1")
	if len(events) != 1 || events[0] != OutJoinFailed {
		t.Fatalf("expected joinFailed for an unknown realm, got %v", events)
	}
}

func TestTeleportMovesPlayerBetweenRooms(t *testing.T) {
	h := newHarness(t, 150)
	alice := h.addUser("alice")
	h.profiles[alice] = store.Profile{UserID: alice, Skin: "default"}
	realm := h.addRealm(alice)
	h.connect(t, "socket-1", alice)
	h.join("socket-1", alice, realm.ID)

	before := len(h.sender.to("socket-1"))
	raw, _ := json.Marshal(map[string]any{"x": 5, "y": 5, "roomIndex": 1})
	h.dispatcher.HandleMessage(context.Background(), "socket-1", alice, InTeleport, raw)

	s, ok := h.sessions.SessionOf(alice)
	if !ok {
		t.Fatalf("expected alice to still have a session after teleport")
	}
	player, _ := s.Player(alice)
	if player.RoomIndex != 1 {
		t.Fatalf("expected alice to be in room 1 after teleport, got %d", player.RoomIndex)
	}
	after := len(h.sender.to("socket-1"))
	if after != before {
		t.Fatalf("expected a solo teleport with no one else in either room to produce no frame back to the originator")
	}
}

func TestConcurrentJoinsForDifferentUsersDoNotRace(t *testing.T) {
	h := newHarness(t, 150)
	owner := h.addUser("owner")
	h.profiles[owner] = store.Profile{UserID: owner, Skin: "default"}
	realm := h.addRealm(owner)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		userID := h.addUser(fmt.Sprintf("user-%d", i))
		h.profiles[userID] = store.Profile{UserID: userID, Skin: "default"}
		socketID := fmt.Sprintf("socket-%d", i)
		wg.Add(1)
		go func(socketID string, userID uuid.UUID) {
			defer wg.Done()
			h.dispatcher.HandleConnect(context.Background(), socketID, "any-token", userID)
			h.join(socketID, userID, realm.ID)
		}(socketID, userID)
	}
	wg.Wait()

	diag := h.sessions.Diagnostics()
	if diag.SessionCount != 1 {
		t.Fatalf("expected exactly one session for the shared realm, got %d", diag.SessionCount)
	}
	if diag.PlayersByRealm[realm.ID.String()] != n {
		t.Fatalf("expected %d players in the realm, got %d", n, diag.PlayersByRealm[realm.ID.String()])
	}
}
