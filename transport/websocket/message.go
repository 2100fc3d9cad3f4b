package websocket

import (
	"encoding/json"

	"github.com/getohub/morrisapi/internal/entity"
)

// Inbound event names.
const (
	eventInit        = "init"
	eventReady       = "ready"
	eventStateUpdate = "stateUpdate"
	eventDisconnect  = "disconnect"
)

// Message is one WebSocket message: an event name and its payload.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitPayload joins a user to a session room.
type InitPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	IsCreator bool   `json:"isCreator"`
}

// ReadyPayload toggles a player's readiness.
type ReadyPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	IsReady   bool   `json:"isReady"`
}

// StateUpdatePayload carries an authoritative state snapshot for a session.
type StateUpdatePayload struct {
	SessionID string `json:"sessionId"`
	entity.StateUpdate
}
