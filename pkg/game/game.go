// Package game defines the world and player collaborator contracts the
// session/command core consumes, plus reference in-memory implementations.
package game

import "time"

// Exit is one traversable link out of a room.
type Exit struct {
	Direction string `yaml:"direction"`
	ToRoomID  string `yaml:"to"`
}

// Player is the live record of an authenticated character in the world.
type Player struct {
	SessionID string
	Username  string
	RoomID    string
	CreatedAt time.Time
}

// WorldManager is the room/movement collaborator. The core never inspects
// world structure beyond these operations.
type WorldManager interface {
	GetRoomDescription(roomID string) string
	FindExit(roomID, direction string) *Exit
	MovePlayer(sessionID, fromRoomID, toRoomID string) bool
	GetStartingRoomID() string
}

// PlayerManager is the player-tracking collaborator.
type PlayerManager interface {
	GetPlayerBySessionID(sessionID string) *Player
	GetPlayerByUsername(username string) *Player
	CreatePlayer(sessionID, username, roomID string) *Player
	AddPlayer(p *Player)
	RemovePlayerBySessionID(sessionID string)
}
