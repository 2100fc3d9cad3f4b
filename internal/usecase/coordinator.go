package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/getohub/morrisapi/internal/entity"
)

// Outbound room events. Every broadcast goes to all subscribers of the room,
// including the participant that triggered it.
const (
	EventRosterUpdated   = "rosterUpdated"
	EventSessionUpdated  = "sessionUpdated"
	EventMatchStarted    = "matchStarted"
	EventMatchEnded      = "matchEnded"
	EventSessionTimedOut = "sessionTimedOut"
)

type registry interface {
	GetOrCreate(id string) *entity.Session
	Get(id string) (*entity.Session, error)
}

type broadcaster interface {
	Broadcast(sessionID, event string, payload any)
}

type reconciler interface {
	FlushResult(ctx context.Context, sessionID, winner string, winnerScore int)
}

// MatchResult is the matchEnded payload.
type MatchResult struct {
	SessionID   string `json:"sessionId"`
	Winner      string `json:"winner,omitempty"`
	WinnerScore int    `json:"winnerScore,omitempty"`
	State       string `json:"state"`
}

// Coordinator mediates the join/ready/play/finish protocol for every live
// session. Nothing here is fatal: an absent session, a full roster or an
// unknown player all degrade to a no-op, because late and duplicate client
// events are normal traffic.
type Coordinator struct {
	logger      *slog.Logger
	registry    registry
	broadcaster broadcaster
	reconciler  reconciler

	now func() time.Time
}

func NewCoordinator(logger *slog.Logger, registry registry, broadcaster broadcaster, reconciler reconciler) *Coordinator {
	return &Coordinator{
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,
		reconciler:  reconciler,

		now: time.Now,
	}
}

// Join - fetches or lazily creates the session and upserts the user on its
// roster. The roster and a full snapshot are rebroadcast even when a join on
// a full roster was ignored: clients rely on the absence of an explicit
// rejection.
func (that *Coordinator) Join(sessionID, userID, username, role string, isCreator bool) {
	log := that.logger.With("method", "Join", "sessionID", sessionID, "userID", userID)

	session := that.registry.GetOrCreate(sessionID)

	if err := session.Join(userID, username, role, isCreator, that.now()); err != nil {
		log.Info("join ignored", "error", err)
	}

	that.broadcaster.Broadcast(sessionID, EventRosterUpdated, session.Roster())
	that.broadcaster.Broadcast(sessionID, EventSessionUpdated, session.Snapshot())
}

// SetReady - updates a player's readiness and starts the match once both
// seats are ready and a creator is present. The start transition is guarded
// inside the entity, so re-checking the condition on every ready event can
// never fire matchStarted twice.
func (that *Coordinator) SetReady(sessionID, userID string, isReady bool) {
	log := that.logger.With("method", "SetReady", "sessionID", sessionID, "userID", userID)

	session, err := that.registry.Get(sessionID)
	if err != nil {
		log.Debug("ready for unknown session ignored", "error", err)
		return
	}

	if err = session.SetReady(userID, isReady, that.now()); err != nil {
		log.Debug("ready ignored", "error", err)
		return
	}

	that.broadcaster.Broadcast(sessionID, EventRosterUpdated, session.Roster())

	if !session.TryStart(that.now()) {
		return
	}

	snapshot := session.Snapshot()
	that.broadcaster.Broadcast(sessionID, EventSessionUpdated, snapshot)
	that.broadcaster.Broadcast(sessionID, EventMatchStarted, snapshot)

	log.Info("match started")
}

// ApplyStateUpdate - merges an authoritative state payload into the session
// and fans the merged snapshot out to the room. A terminal update
// additionally flushes the result to the record store and broadcasts
// matchEnded; reconciliation never blocks the broadcast.
func (that *Coordinator) ApplyStateUpdate(ctx context.Context, sessionID string, update *entity.StateUpdate) {
	log := that.logger.With("method", "ApplyStateUpdate", "sessionID", sessionID)

	session, err := that.registry.Get(sessionID)
	if err != nil {
		log.Debug("state update for unknown session ignored", "error", err)
		return
	}

	finished, err := session.ApplyUpdate(update, that.now())
	if err != nil {
		log.Debug("state update ignored", "error", err)
		return
	}

	snapshot := session.Snapshot()
	that.broadcaster.Broadcast(sessionID, EventSessionUpdated, snapshot)

	if !finished {
		return
	}

	that.reconciler.FlushResult(ctx, sessionID, snapshot.Winner, snapshot.WinnerScore)

	that.broadcaster.Broadcast(sessionID, EventMatchEnded, MatchResult{
		SessionID:   sessionID,
		Winner:      snapshot.Winner,
		WinnerScore: snapshot.WinnerScore,
		State:       entity.StateFinished,
	})

	log.Info("match ended", "winner", snapshot.Winner)
}
