package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 16

// client is one connected socket. Writes go through a buffered channel and
// a single write pump, because gorilla connections allow one concurrent
// writer only.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// room the socket is subscribed to; managed by the server read loop.
	sessionID string

	closeOnce sync.Once
}

func (that *client) writePump() {
	defer that.conn.Close()

	for message := range that.send {
		if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.send)
	})
}

// Hub is the room-scoped fan-out primitive: it maps each session id to the
// set of sockets subscribed to that room and delivers events to all of them,
// including the sender.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[string]*client),
	}
}

func (that *Hub) subscribe(sessionID string, subscriber *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[sessionID]
	if !ok {
		room = make(map[string]*client)
		that.rooms[sessionID] = room
	}

	room[subscriber.id] = subscriber
}

func (that *Hub) unsubscribe(sessionID string, subscriber *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[sessionID]
	if !ok {
		return
	}

	delete(room, subscriber.id)
	if len(room) == 0 {
		delete(that.rooms, sessionID)
	}
}

// Broadcast - delivers an event to every socket subscribed to the room.
// A subscriber whose send buffer is full is skipped rather than allowed to
// stall the rest of the room.
func (that *Hub) Broadcast(sessionID, event string, payload any) {
	log := that.logger.With("method", "Broadcast", "sessionID", sessionID, "event", event)

	message := Message{Event: event}

	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			log.Error("failed to marshal payload", "error", err)
			return
		}
		message.Payload = payloadJSON
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		log.Error("failed to marshal message", "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, subscriber := range that.rooms[sessionID] {
		select {
		case subscriber.send <- messageJSON:
		default:
			log.Warn("dropping event for slow subscriber", "subscriberID", subscriber.id)
		}
	}
}
