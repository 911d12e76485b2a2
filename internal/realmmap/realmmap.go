// Package realmmap parses a realm's opaque map_data blob into a structured,
// immutable form. Parsing is a pure function: it has no side effects and
// produces no mutation operations on its result.
package realmmap

import (
	"encoding/json"
	"fmt"

	"realms/server/internal/apierr"
)

// Point is an integer tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Teleport moves a player standing on (From) to (ToRoomIndex, To) when triggered.
type Teleport struct {
	From        Point `json:"from"`
	ToRoomIndex int   `json:"toRoomIndex"`
	To          Point `json:"to"`
}

// Room is one subdivision of a realm.
type Room struct {
	Spawn     Point
	Barriers  map[Point]struct{}
	Teleports []Teleport
}

// RealmMap is the immutable, parsed form of a realm's map_data.
type RealmMap struct {
	Rooms []Room
}

// RoomCount returns the number of rooms in the realm.
func (m *RealmMap) RoomCount() int {
	if m == nil {
		return 0
	}
	return len(m.Rooms)
}

// ValidRoom reports whether roomIndex names an existing room.
func (m *RealmMap) ValidRoom(roomIndex int) bool {
	return roomIndex >= 0 && roomIndex < m.RoomCount()
}

// Spawn returns the spawn point for the given room, defaulting to the
// origin if the room does not exist (callers must validate first).
func (m *RealmMap) Spawn(roomIndex int) (float64, float64) {
	if !m.ValidRoom(roomIndex) {
		return 0, 0
	}
	room := m.Rooms[roomIndex]
	return float64(room.Spawn.X), float64(room.Spawn.Y)
}

type wireTeleport struct {
	FromX       int `json:"fromX"`
	FromY       int `json:"fromY"`
	ToRoomIndex int `json:"toRoomIndex"`
	ToX         int `json:"toX"`
	ToY         int `json:"toY"`
}

type wireRoom struct {
	Spawn     Point          `json:"spawn"`
	Barriers  []Point        `json:"barriers"`
	Teleports []wireTeleport `json:"teleports"`
}

type wireRealm struct {
	Rooms []wireRoom `json:"rooms"`
}

// Parse transforms a realm's map_data JSON into a RealmMap. It fails with
// apierr.ErrBadRealm if the data is malformed or defines zero rooms.
func Parse(mapData []byte) (*RealmMap, error) {
	var wire wireRealm
	if err := json.Unmarshal(mapData, &wire); err != nil {
		return nil, apierr.Wrap(apierr.KindNotFound, fmt.Sprintf("invalid map data: %v", err), apierr.ErrBadRealm)
	}
	if len(wire.Rooms) == 0 {
		return nil, apierr.ErrBadRealm
	}

	rooms := make([]Room, 0, len(wire.Rooms))
	for i, wr := range wire.Rooms {
		barriers := make(map[Point]struct{}, len(wr.Barriers))
		for _, b := range wr.Barriers {
			barriers[b] = struct{}{}
		}
		teleports := make([]Teleport, 0, len(wr.Teleports))
		for _, t := range wr.Teleports {
			if t.ToRoomIndex < 0 || t.ToRoomIndex >= len(wire.Rooms) {
				return nil, apierr.Wrap(apierr.KindNotFound, fmt.Sprintf("room %d: teleport targets invalid room %d", i, t.ToRoomIndex), apierr.ErrBadRealm)
			}
			teleports = append(teleports, Teleport{
				From:        Point{X: t.FromX, Y: t.FromY},
				ToRoomIndex: t.ToRoomIndex,
				To:          Point{X: t.ToX, Y: t.ToY},
			})
		}
		rooms = append(rooms, Room{
			Spawn:     wr.Spawn,
			Barriers:  barriers,
			Teleports: teleports,
		})
	}

	return &RealmMap{Rooms: rooms}, nil
}
