// Package proximity publishes structured events for proximity-group
// recomputation outcomes within a room.
package proximity

import (
	"context"

	"realms/server/logging"
)

const (
	// EventGroupChanged is emitted for every player whose proximityId changed
	// as a result of an insert, remove, or move.
	EventGroupChanged logging.EventType = "proximity.group_changed"
	// EventRecomputeSlow is a warning event emitted when a single recompute pass
	// scans an unusually large room.
	EventRecomputeSlow logging.EventType = "proximity.recompute_slow"
)

// GroupChangedPayload records the previous and new group assignment.
type GroupChangedPayload struct {
	RoomIndex int    `json:"roomIndex"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
}

// RecomputeSlowPayload records the room size that triggered the warning.
type RecomputeSlowPayload struct {
	RoomIndex int `json:"roomIndex"`
	PlayerCount int `json:"playerCount"`
}

func GroupChanged(ctx context.Context, pub logging.Publisher, realmID string, actor logging.EntityRef, payload GroupChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGroupChanged,
		RealmID:  realmID,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryProximity,
		Payload:  payload,
	})
}

func RecomputeSlow(ctx context.Context, pub logging.Publisher, realmID string, payload RecomputeSlowPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRecomputeSlow,
		RealmID:  realmID,
		Actor:    logging.EntityRef{ID: realmID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryProximity,
		Payload:  payload,
	})
}
