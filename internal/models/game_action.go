package models

import "encoding/json"

// GameAction is a message a client sends over the match websocket.
// Action carries a truco.Action for type "action" and is empty otherwise.
type GameAction struct {
	Type   string          `json:"type"`
	Action json.RawMessage `json:"action,omitempty"`
}
