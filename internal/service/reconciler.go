package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultFlushTimeout = 5 * time.Second

type resultStore interface {
	UpdateResult(ctx context.Context, sessionID, winner string, winnerScore int) error
}

// Reconciler pushes terminal match results into the persistent record store.
// The push is best effort and fire-and-forget: a failure is logged and
// swallowed, never surfaced to the room and never retried inline, because
// the in-memory broadcast already went out. The store's update is an
// idempotent upsert, so duplicate terminal events for the same session are
// harmless.
type Reconciler struct {
	logger *slog.Logger
	store  resultStore

	timeout time.Duration
	wg      sync.WaitGroup
}

func NewReconciler(logger *slog.Logger, store resultStore) *Reconciler {
	return &Reconciler{
		logger:  logger,
		store:   store,
		timeout: defaultFlushTimeout,
	}
}

// FlushResult - records the final result for the session asynchronously.
// The write keeps going even if the triggering event's context is canceled
// mid-flight.
func (that *Reconciler) FlushResult(ctx context.Context, sessionID, winner string, winnerScore int) {
	log := that.logger.With("method", "FlushResult", "sessionID", sessionID)

	that.wg.Add(1)
	go func() {
		defer that.wg.Done()

		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), that.timeout)
		defer cancel()

		if err := that.store.UpdateResult(flushCtx, sessionID, winner, winnerScore); err != nil {
			log.Error("failed to flush game result", "winner", winner, "error", err)
			return
		}

		log.Info("game result flushed", "winner", winner, "winnerScore", winnerScore)
	}()
}

// Wait - blocks until every in-flight flush completed. Used on shutdown and
// in tests.
func (that *Reconciler) Wait() {
	that.wg.Wait()
}
