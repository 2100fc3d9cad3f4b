package usecase

import (
	"log/slog"
	"sync"
	"time"

	"github.com/getohub/morrisapi/internal/entity"
)

type reaperRegistry interface {
	All() []*entity.Session
	Remove(id string)
}

// Reaper periodically evicts sessions with no recent activity. It is the
// only mechanism that reclaims rooms that never reach the finished phase,
// and it runs independently of event traffic.
type Reaper struct {
	logger      *slog.Logger
	registry    reaperRegistry
	broadcaster broadcaster

	interval time.Duration
	maxIdle  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewReaper(logger *slog.Logger, registry reaperRegistry, broadcaster broadcaster, interval, maxIdle time.Duration) *Reaper {
	return &Reaper{
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,

		interval: interval,
		maxIdle:  maxIdle,

		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start - launches the sweep loop.
func (that *Reaper) Start() {
	that.wg.Add(1)
	go that.loop()
}

// Stop - stops the loop and waits for an in-flight sweep to finish.
func (that *Reaper) Stop() {
	close(that.stopCh)
	that.wg.Wait()
}

func (that *Reaper) loop() {
	defer that.wg.Done()

	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			that.Sweep()
		case <-that.stopCh:
			return
		}
	}
}

// Sweep - evicts every session idle for longer than the threshold. The room
// is told it timed out before the entity disappears, so the broadcast fires
// exactly once per evicted session.
func (that *Reaper) Sweep() {
	log := that.logger.With("method", "Sweep")

	cutoff := that.now().Add(-that.maxIdle)

	for _, session := range that.registry.All() {
		if !session.IdleSince(cutoff) {
			continue
		}

		that.broadcaster.Broadcast(session.ID, EventSessionTimedOut, nil)
		that.registry.Remove(session.ID)

		log.Info("session timed out", "sessionID", session.ID)
	}
}
