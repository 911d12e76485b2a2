// Package validate implements the payload schemas of §6 as pure functions:
// each returns a typed value or a ValidationError(path, reason). No
// runtime reflection is used — every payload shape has an explicit,
// hand-written validator built from a small set of shared constraint
// primitives (finite range, string length, charset, uuid).
package validate

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"

	"realms/server/internal/apierr"
)

func fail(path, reason string) error {
	return apierr.New(apierr.KindValidation, path+": "+reason)
}

// Float validates a finite number within [min, max].
func Float(path string, v float64, min, max float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fail(path, "must be finite")
	}
	if v < min || v > max {
		return 0, fail(path, "out of range")
	}
	return v, nil
}

// NonNegativeInt validates v >= 0.
func NonNegativeInt(path string, v int) (int, error) {
	if v < 0 {
		return 0, fail(path, "must be non-negative")
	}
	return v, nil
}

// UUID parses a required UUID field.
func UUID(path, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.UUID{}, fail(path, "required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fail(path, "must be a uuid")
	}
	return id, nil
}

// OptionalUUID parses an optional UUID field; empty maps to uuid.Nil.
func OptionalUUID(path, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fail(path, "must be a uuid")
	}
	return id, nil
}

// StringLen validates a string's rune length falls within [min, max].
func StringLen(path, s string, min, max int) (string, error) {
	n := len([]rune(s))
	if n < min || n > max {
		return "", fail(path, "length out of range")
	}
	return s, nil
}

// Charset validates every rune in s satisfies allowed.
func Charset(path, s string, allowed func(rune) bool) (string, error) {
	for _, r := range s {
		if !allowed(r) {
			return "", fail(path, "contains disallowed characters")
		}
	}
	return s, nil
}

func skinCharset(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// CollapseWhitespace trims leading/trailing whitespace and collapses
// interior runs of whitespace to a single space, per the sendMessage schema.
func CollapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// JoinRealm is the parsed `joinRealm` payload.
type JoinRealm struct {
	RealmID uuid.UUID
	ShareID uuid.UUID
}

type joinRealmWire struct {
	RealmID string `json:"realmId"`
	ShareID string `json:"shareId,omitempty"`
}

func ParseJoinRealm(raw json.RawMessage) (JoinRealm, error) {
	var wire joinRealmWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return JoinRealm{}, fail("joinRealm", "malformed payload")
	}
	realmID, err := UUID("realmId", wire.RealmID)
	if err != nil {
		return JoinRealm{}, err
	}
	shareID, err := OptionalUUID("shareId", wire.ShareID)
	if err != nil {
		return JoinRealm{}, err
	}
	return JoinRealm{RealmID: realmID, ShareID: shareID}, nil
}

// MovePlayer is the parsed `movePlayer` payload.
type MovePlayer struct {
	X, Y float64
}

type movePlayerWire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CoordBound is the symmetric bound on x/y coordinates. It is a var, not a
// const, so internal/config can override it from COORD_BOUND at startup.
var CoordBound float64 = 10000

func ParseMovePlayer(raw json.RawMessage) (MovePlayer, error) {
	var wire movePlayerWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return MovePlayer{}, fail("movePlayer", "malformed payload")
	}
	x, err := Float("x", wire.X, -CoordBound, CoordBound)
	if err != nil {
		return MovePlayer{}, err
	}
	y, err := Float("y", wire.Y, -CoordBound, CoordBound)
	if err != nil {
		return MovePlayer{}, err
	}
	return MovePlayer{X: x, Y: y}, nil
}

// Teleport is the parsed `teleport` payload.
type Teleport struct {
	X, Y      float64
	RoomIndex int
}

type teleportWire struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	RoomIndex int     `json:"roomIndex"`
}

func ParseTeleport(raw json.RawMessage) (Teleport, error) {
	var wire teleportWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Teleport{}, fail("teleport", "malformed payload")
	}
	x, err := Float("x", wire.X, -CoordBound, CoordBound)
	if err != nil {
		return Teleport{}, err
	}
	y, err := Float("y", wire.Y, -CoordBound, CoordBound)
	if err != nil {
		return Teleport{}, err
	}
	roomIndex, err := NonNegativeInt("roomIndex", wire.RoomIndex)
	if err != nil {
		return Teleport{}, err
	}
	return Teleport{X: x, Y: y, RoomIndex: roomIndex}, nil
}

// ChangedSkin is the parsed `changedSkin` payload.
type ChangedSkin struct {
	Skin string
}

func ParseChangedSkin(raw json.RawMessage) (ChangedSkin, error) {
	var skin string
	if err := json.Unmarshal(raw, &skin); err != nil {
		return ChangedSkin{}, fail("changedSkin", "malformed payload")
	}
	skin, err := StringLen("changedSkin", skin, 1, 50)
	if err != nil {
		return ChangedSkin{}, err
	}
	skin, err = Charset("changedSkin", skin, skinCharset)
	if err != nil {
		return ChangedSkin{}, err
	}
	return ChangedSkin{Skin: skin}, nil
}

// SendMessage is the parsed `sendMessage` payload.
type SendMessage struct {
	Message string
}

func ParseSendMessage(raw json.RawMessage) (SendMessage, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return SendMessage{}, fail("sendMessage", "malformed payload")
	}
	trimmed := CollapseWhitespace(text)
	trimmed, err := StringLen("sendMessage", trimmed, 1, 500)
	if err != nil {
		return SendMessage{}, err
	}
	return SendMessage{Message: trimmed}, nil
}

// KickPlayer is the parsed `kickPlayer` payload.
type KickPlayer struct {
	UID uuid.UUID
}

type kickPlayerWire struct {
	UID string `json:"uid"`
}

func ParseKickPlayer(raw json.RawMessage) (KickPlayer, error) {
	var wire kickPlayerWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return KickPlayer{}, fail("kickPlayer", "malformed payload")
	}
	uid, err := UUID("uid", wire.UID)
	if err != nil {
		return KickPlayer{}, err
	}
	return KickPlayer{UID: uid}, nil
}
