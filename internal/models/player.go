package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is a user sitting at one seat of a match.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	Seat      int             `json:"seat"`
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`

	User *User `json:"-"`
}

// Name is what the table shows for this player.
func (p *Player) Name() string {
	if p.User != nil && p.User.Username != "" {
		return p.User.Username
	}
	return "Guest"
}
