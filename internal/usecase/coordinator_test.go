package usecase

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getohub/morrisapi/internal/entity"
	"github.com/getohub/morrisapi/internal/session"
)

type broadcastEvent struct {
	sessionID string
	event     string
	payload   any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (that *fakeBroadcaster) Broadcast(sessionID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, broadcastEvent{sessionID: sessionID, event: event, payload: payload})
}

func (that *fakeBroadcaster) named(event string) []broadcastEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	var matched []broadcastEvent
	for _, sent := range that.events {
		if sent.event == event {
			matched = append(matched, sent)
		}
	}

	return matched
}

func (that *fakeBroadcaster) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.events)
}

type flushCall struct {
	sessionID   string
	winner      string
	winnerScore int
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []flushCall
}

func (that *fakeReconciler) FlushResult(_ context.Context, sessionID, winner string, winnerScore int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls = append(that.calls, flushCall{sessionID: sessionID, winner: winner, winnerScore: winnerScore})
}

func (that *fakeReconciler) flushed() []flushCall {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]flushCall(nil), that.calls...)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *session.Registry, *fakeBroadcaster, *fakeReconciler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	registry := session.NewRegistry()
	broadcasts := &fakeBroadcaster{}
	flusher := &fakeReconciler{}

	return NewCoordinator(logger, registry, broadcasts, flusher), registry, broadcasts, flusher
}

type testWriter struct {
	t *testing.T
}

func (that testWriter) Write(p []byte) (int, error) {
	that.t.Log(string(p))
	return len(p), nil
}

func TestCoordinator_Join(t *testing.T) {
	t.Run("Lazily creates the session and broadcasts roster and snapshot", func(t *testing.T) {
		coordinator, registry, broadcasts, _ := newTestCoordinator(t)

		// When: the first user joins an unknown session id
		coordinator.Join("game-1", "u1", "alice", entity.ColorBlack, true)

		// Then: the session exists and the room saw the roster and a full snapshot
		created, err := registry.Get("game-1")
		require.NoError(t, err)
		assert.Len(t, created.Roster(), 1)

		require.Len(t, broadcasts.named(EventRosterUpdated), 1)
		require.Len(t, broadcasts.named(EventSessionUpdated), 1)
	})

	t.Run("Roster never exceeds two seats", func(t *testing.T) {
		coordinator, registry, _, _ := newTestCoordinator(t)

		// When: more joins arrive than there are seats
		coordinator.Join("game-1", "u1", "alice", entity.ColorBlack, true)
		coordinator.Join("game-1", "u2", "bob", entity.ColorWhite, false)
		coordinator.Join("game-1", "u3", "carol", entity.ColorWhite, false)
		coordinator.Join("game-1", "u2", "bob", entity.ColorWhite, false)

		// Then: only the first two users hold seats
		created, err := registry.Get("game-1")
		require.NoError(t, err)
		roster := created.Roster()
		require.Len(t, roster, 2)
		assert.Equal(t, "u1", roster[0].ID)
		assert.Equal(t, "u2", roster[1].ID)
	})

	t.Run("An ignored join still rebroadcasts the room state", func(t *testing.T) {
		coordinator, _, broadcasts, _ := newTestCoordinator(t)
		coordinator.Join("game-1", "u1", "alice", entity.ColorBlack, true)
		coordinator.Join("game-1", "u2", "bob", entity.ColorWhite, false)

		before := broadcasts.count()

		// When: a third user tries a full room
		coordinator.Join("game-1", "u3", "carol", entity.ColorWhite, false)

		// Then: no error event exists, but the unchanged state is re-sent
		assert.Equal(t, before+2, broadcasts.count())
	})
}

func TestCoordinator_SetReady(t *testing.T) {
	joinBoth := func(coordinator *Coordinator) {
		coordinator.Join("game-1", "u1", "alice", entity.ColorBlack, true)
		coordinator.Join("game-1", "u2", "bob", entity.ColorWhite, false)
	}

	t.Run("Ready for an unknown session produces nothing", func(t *testing.T) {
		coordinator, _, broadcasts, _ := newTestCoordinator(t)

		coordinator.SetReady("ghost", "u1", true)

		assert.Zero(t, broadcasts.count())
	})

	t.Run("Ready for an unknown player produces no broadcast", func(t *testing.T) {
		coordinator, _, broadcasts, _ := newTestCoordinator(t)
		joinBoth(coordinator)
		before := broadcasts.count()

		coordinator.SetReady("game-1", "ghost", true)

		assert.Equal(t, before, broadcasts.count())
	})

	t.Run("Second ready starts the match deterministically", func(t *testing.T) {
		coordinator, registry, broadcasts, _ := newTestCoordinator(t)
		joinBoth(coordinator)

		// When: both players report ready
		coordinator.SetReady("game-1", "u2", true)
		coordinator.SetReady("game-1", "u1", true)

		// Then: the match entered placement with black to move and the creator on turn
		created, err := registry.Get("game-1")
		require.NoError(t, err)
		snapshot := created.Snapshot()
		assert.Equal(t, entity.PhasePlacement, snapshot.Phase)
		assert.Equal(t, entity.StatePlaying, snapshot.State)
		assert.Equal(t, entity.ColorBlack, snapshot.CurrentPlayer)
		assert.True(t, snapshot.Players[0].IsMyTurn)

		started := broadcasts.named(EventMatchStarted)
		require.Len(t, started, 1)
		startedSnapshot, ok := started[0].payload.(*entity.Session)
		require.True(t, ok)
		assert.Equal(t, entity.PhasePlacement, startedSnapshot.Phase)
	})

	t.Run("A duplicate ready never re-fires the start broadcast", func(t *testing.T) {
		coordinator, _, broadcasts, _ := newTestCoordinator(t)
		joinBoth(coordinator)
		coordinator.SetReady("game-1", "u1", true)
		coordinator.SetReady("game-1", "u2", true)

		// When: an already-ready player reports ready again
		coordinator.SetReady("game-1", "u1", true)

		// Then: the roster is rebroadcast but the match does not restart
		assert.Len(t, broadcasts.named(EventMatchStarted), 1)
	})
}

func TestCoordinator_ApplyStateUpdate(t *testing.T) {
	ctx := context.Background()

	startMatch := func(coordinator *Coordinator) {
		coordinator.Join("game-1", "u1", "alice", entity.ColorBlack, true)
		coordinator.Join("game-1", "u2", "bob", entity.ColorWhite, false)
		coordinator.SetReady("game-1", "u1", true)
		coordinator.SetReady("game-1", "u2", true)
	}

	t.Run("Update for an unknown session produces nothing", func(t *testing.T) {
		coordinator, _, broadcasts, flusher := newTestCoordinator(t)

		white := entity.ColorWhite
		coordinator.ApplyStateUpdate(ctx, "ghost", &entity.StateUpdate{CurrentPlayer: &white})

		assert.Zero(t, broadcasts.count())
		assert.Empty(t, flusher.flushed())
	})

	t.Run("Non-terminal update rebroadcasts the merged snapshot only", func(t *testing.T) {
		coordinator, _, broadcasts, flusher := newTestCoordinator(t)
		startMatch(coordinator)
		before := len(broadcasts.named(EventSessionUpdated))

		white := entity.ColorWhite
		playing := entity.PhasePlaying
		coordinator.ApplyStateUpdate(ctx, "game-1", &entity.StateUpdate{
			CurrentPlayer: &white,
			Phase:         &playing,
		})

		updated := broadcasts.named(EventSessionUpdated)
		require.Len(t, updated, before+1)
		snapshot, ok := updated[len(updated)-1].payload.(*entity.Session)
		require.True(t, ok)
		assert.Equal(t, entity.ColorWhite, snapshot.CurrentPlayer)
		assert.Empty(t, flusher.flushed())
		assert.Empty(t, broadcasts.named(EventMatchEnded))
	})

	t.Run("Terminal update finishes the match, reconciles once and announces the end", func(t *testing.T) {
		coordinator, _, broadcasts, flusher := newTestCoordinator(t)
		startMatch(coordinator)

		winner := entity.ColorBlack
		score := 42
		coordinator.ApplyStateUpdate(ctx, "game-1", &entity.StateUpdate{
			Winner:      &winner,
			WinnerScore: &score,
		})

		// Then: exactly one reconciliation attempt with the final values
		require.Equal(t, []flushCall{{sessionID: "game-1", winner: entity.ColorBlack, winnerScore: 42}}, flusher.flushed())

		ended := broadcasts.named(EventMatchEnded)
		require.Len(t, ended, 1)
		result, ok := ended[0].payload.(MatchResult)
		require.True(t, ok)
		assert.Equal(t, MatchResult{
			SessionID:   "game-1",
			Winner:      entity.ColorBlack,
			WinnerScore: 42,
			State:       entity.StateFinished,
		}, result)
	})

	t.Run("Game over forces the finished state regardless of the payload phase", func(t *testing.T) {
		coordinator, registry, _, flusher := newTestCoordinator(t)
		startMatch(coordinator)

		gameOver := true
		playing := entity.PhasePlaying
		coordinator.ApplyStateUpdate(ctx, "game-1", &entity.StateUpdate{
			GameOver: &gameOver,
			Phase:    &playing,
		})

		created, err := registry.Get("game-1")
		require.NoError(t, err)
		snapshot := created.Snapshot()
		assert.Equal(t, entity.PhaseFinished, snapshot.Phase)
		assert.Equal(t, entity.StateFinished, snapshot.State)
		assert.Len(t, flusher.flushed(), 1)
	})

	t.Run("A late non-terminal update after the end is dropped", func(t *testing.T) {
		coordinator, _, broadcasts, _ := newTestCoordinator(t)
		startMatch(coordinator)

		winner := entity.ColorBlack
		coordinator.ApplyStateUpdate(ctx, "game-1", &entity.StateUpdate{Winner: &winner})
		before := broadcasts.count()

		white := entity.ColorWhite
		coordinator.ApplyStateUpdate(ctx, "game-1", &entity.StateUpdate{CurrentPlayer: &white})

		assert.Equal(t, before, broadcasts.count())
	})
}
