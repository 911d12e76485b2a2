package dispatch

import "realms/server/internal/session"

// Envelope is the wire shape of every message on the bidirectional channel.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// PlayerInfo is the wire projection of a session.Player.
type PlayerInfo struct {
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	Skin        string  `json:"skin"`
	RoomIndex   int     `json:"roomIndex"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	ProximityID string  `json:"proximityId"`
}

func toPlayerInfo(p session.Player) PlayerInfo {
	return PlayerInfo{
		UserID:      p.UserID.String(),
		Username:    p.Username,
		Skin:        p.Skin,
		RoomIndex:   p.RoomIndex,
		X:           p.X,
		Y:           p.Y,
		ProximityID: p.ProximityID,
	}
}

// RealmInfo is the wire projection of the realm snapshot sent on join.
type RealmInfo struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
}

// JoinedRoomPayload is the `joinedRoom` outbound payload.
type JoinedRoomPayload struct {
	Realm     RealmInfo  `json:"realm"`
	Player    PlayerInfo `json:"player"`
	RoomIndex int        `json:"roomIndex"`
}

// PlayerLeftRoomPayload is the `playerLeftRoom` outbound payload.
type PlayerLeftRoomPayload struct {
	UserID string `json:"userId"`
}

// PlayerMovedPayload is the `playerMoved` outbound payload.
type PlayerMovedPayload struct {
	UID string  `json:"uid"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// PlayerTeleportedPayload is the `playerTeleported` outbound payload.
type PlayerTeleportedPayload struct {
	UID       string  `json:"uid"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	RoomIndex int     `json:"roomIndex"`
}

// PlayerChangedSkinPayload is the `playerChangedSkin` outbound payload.
type PlayerChangedSkinPayload struct {
	UID  string `json:"uid"`
	Skin string `json:"skin"`
}

// ReceiveMessagePayload is the `receiveMessage` outbound payload.
type ReceiveMessagePayload struct {
	UID     string `json:"uid"`
	Message string `json:"message"`
}

// ProximityUpdatePayload is the `proximityUpdate` outbound payload.
type ProximityUpdatePayload struct {
	ProximityID string `json:"proximityId"`
}

// SessionTerminatedPayload is the `sessionTerminated` outbound payload.
type SessionTerminatedPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ErrorPayload is the `error` outbound payload.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeAuthError        = "AUTH_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeRealmUpdated     = "REALM_UPDATED"
	CodeRealmDeleted     = "REALM_DELETED"
	CodeOwnerKicked      = "OWNER_KICKED"
	CodeServerReboot     = "SERVER_RESTART"
)

const (
	OutJoinedRoom         = "joinedRoom"
	OutJoinFailed         = "joinFailed"
	OutPlayerJoinedRoom   = "playerJoinedRoom"
	OutPlayerLeftRoom     = "playerLeftRoom"
	OutPlayerMoved        = "playerMoved"
	OutPlayerTeleported   = "playerTeleported"
	OutPlayerChangedSkin  = "playerChangedSkin"
	OutReceiveMessage     = "receiveMessage"
	OutProximityUpdate    = "proximityUpdate"
	OutSessionTerminated  = "sessionTerminated"
	OutError              = "error"
)

const (
	InJoinRealm   = "joinRealm"
	InMovePlayer  = "movePlayer"
	InTeleport    = "teleport"
	InChangedSkin = "changedSkin"
	InSendMessage = "sendMessage"
	InKickPlayer  = "kickPlayer"
)
