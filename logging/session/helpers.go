// Package session publishes structured events for realm session and player
// lifecycle transitions, mirroring the shape of the teacher's per-domain
// logging helper packages.
package session

import (
	"context"

	"realms/server/logging"
)

const (
	// EventPlayerJoined is emitted when a player is added to a session.
	EventPlayerJoined logging.EventType = "session.player_joined"
	// EventPlayerLeft is emitted when a player is removed from a session,
	// whether by disconnect, kick, or realm eviction.
	EventPlayerLeft logging.EventType = "session.player_left"
	// EventSessionCreated is emitted when the first player joins a realm.
	EventSessionCreated logging.EventType = "session.created"
	// EventSessionDestroyed is emitted when the last player leaves a realm.
	EventSessionDestroyed logging.EventType = "session.destroyed"
	// EventPlayerKicked is emitted when a player is forcibly removed.
	EventPlayerKicked logging.EventType = "session.player_kicked"
	// EventRealmEvicted is emitted when an external realm mutation tears down a session.
	EventRealmEvicted logging.EventType = "session.realm_evicted"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	RoomIndex int     `json:"roomIndex"`
	SpawnX    float64 `json:"spawnX"`
	SpawnY    float64 `json:"spawnY"`
}

// PlayerLeftPayload captures the reason a player left.
type PlayerLeftPayload struct {
	Reason string `json:"reason"`
}

// PlayerKickedPayload captures the reason a player was kicked.
type PlayerKickedPayload struct {
	Reason string `json:"reason"`
}

// RealmEvictedPayload captures the code and reason for an eviction.
type RealmEvictedPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func PlayerJoined(ctx context.Context, pub logging.Publisher, realmID string, actor logging.EntityRef, payload PlayerJoinedPayload) {
	publish(ctx, pub, EventPlayerJoined, logging.SeverityInfo, realmID, actor, payload)
}

func PlayerLeft(ctx context.Context, pub logging.Publisher, realmID string, actor logging.EntityRef, payload PlayerLeftPayload) {
	publish(ctx, pub, EventPlayerLeft, logging.SeverityInfo, realmID, actor, payload)
}

func SessionCreated(ctx context.Context, pub logging.Publisher, realmID string) {
	publish(ctx, pub, EventSessionCreated, logging.SeverityInfo, realmID, logging.EntityRef{ID: realmID, Kind: logging.EntityKindSession}, nil)
}

func SessionDestroyed(ctx context.Context, pub logging.Publisher, realmID string) {
	publish(ctx, pub, EventSessionDestroyed, logging.SeverityInfo, realmID, logging.EntityRef{ID: realmID, Kind: logging.EntityKindSession}, nil)
}

func PlayerKicked(ctx context.Context, pub logging.Publisher, realmID string, actor logging.EntityRef, payload PlayerKickedPayload) {
	publish(ctx, pub, EventPlayerKicked, logging.SeverityWarn, realmID, actor, payload)
}

func RealmEvicted(ctx context.Context, pub logging.Publisher, realmID string, payload RealmEvictedPayload) {
	publish(ctx, pub, EventRealmEvicted, logging.SeverityWarn, realmID, logging.EntityRef{ID: realmID, Kind: logging.EntityKindSession}, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, realmID string, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		RealmID:  realmID,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}
