package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/getohub/morrisapi/internal/entity"
)

var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrMissingUserID    = errors.New("userId is required")
	ErrMissingRole      = errors.New("role is required")
	ErrUnknownEvent     = errors.New("unknown event")
)

type coordinator interface {
	Join(sessionID, userID, username, role string, isCreator bool)
	SetReady(sessionID, userID string, isReady bool)
	ApplyStateUpdate(ctx context.Context, sessionID string, update *entity.StateUpdate)
}

// Server accepts WebSocket connections, subscribes each socket to its
// session room and dispatches inbound events to the coordinator. Malformed
// payloads are rejected here; the coordinator assumes well-formed input.
type Server struct {
	logger      *slog.Logger
	coordinator coordinator
	hub         *Hub

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, subscriber *client, message *Message) error
}

func New(logger *slog.Logger, coordinator coordinator, hub *Hub) *Server {
	server := &Server{
		logger:      logger,
		coordinator: coordinator,
		hub:         hub,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers[eventInit] = server.handleInit
	server.handlers[eventReady] = server.handleReady
	server.handlers[eventStateUpdate] = server.handleStateUpdate
	server.handlers[eventDisconnect] = server.handleDisconnect

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveWS(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveWS")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	subscriber := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	go subscriber.writePump()

	log.Info("WebSocket connection established", "subscriberID", subscriber.id)

	that.readLoop(ctx, subscriber)
}

// readLoop - processes messages from one socket until it disconnects.
// Events from a single connection are handled in arrival order.
func (that *Server) readLoop(ctx context.Context, subscriber *client) {
	log := that.logger.With("method", "readLoop", "subscriberID", subscriber.id)

	defer that.dropClient(subscriber)

	for {
		_, data, err := subscriber.conn.ReadMessage()
		if err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Event]
		if !ok {
			log.Error("failed to dispatch message", "event", message.Event, "error", ErrUnknownEvent)
			continue
		}

		if err = handler(ctx, subscriber, &message); err != nil {
			log.Error("failed to process message", "event", message.Event, "error", err)
		}
	}
}

func (that *Server) dropClient(subscriber *client) {
	if subscriber.sessionID != "" {
		that.hub.unsubscribe(subscriber.sessionID, subscriber)
	}

	subscriber.close()
}

func (that *Server) handleInit(_ context.Context, subscriber *client, message *Message) error {
	var payload InitPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.SessionID == "" {
		return ErrMissingSessionID
	}
	if payload.UserID == "" {
		return ErrMissingUserID
	}
	if payload.Role == "" {
		return ErrMissingRole
	}

	// A socket follows one room at a time; re-init moves it.
	if subscriber.sessionID != "" && subscriber.sessionID != payload.SessionID {
		that.hub.unsubscribe(subscriber.sessionID, subscriber)
	}
	subscriber.sessionID = payload.SessionID
	that.hub.subscribe(payload.SessionID, subscriber)

	that.coordinator.Join(payload.SessionID, payload.UserID, payload.Username, payload.Role, payload.IsCreator)

	return nil
}

func (that *Server) handleReady(_ context.Context, _ *client, message *Message) error {
	var payload ReadyPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.SessionID == "" {
		return ErrMissingSessionID
	}
	if payload.UserID == "" {
		return ErrMissingUserID
	}

	that.coordinator.SetReady(payload.SessionID, payload.UserID, payload.IsReady)

	return nil
}

func (that *Server) handleStateUpdate(ctx context.Context, _ *client, message *Message) error {
	var payload StateUpdatePayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.SessionID == "" {
		return ErrMissingSessionID
	}

	that.coordinator.ApplyStateUpdate(ctx, payload.SessionID, &payload.StateUpdate)

	return nil
}

// handleDisconnect - reserved for presence tracking; the session itself is
// not mutated when a participant leaves.
func (that *Server) handleDisconnect(_ context.Context, subscriber *client, _ *Message) error {
	that.logger.Info("subscriber announced disconnect", "subscriberID", subscriber.id)

	return nil
}
