package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/repository"
)

// Enqueuer accepts MACs for background revocation.
type Enqueuer interface {
	Enqueue(mac string) bool
}

// SweepWorker periodically removes expired sessions and hands their MACs to
// the revocation queue. Batches are bounded so a large expiry wave cannot
// starve foreground requests.
type SweepWorker struct {
	sessions   repository.SessionRepository
	revokes    Enqueuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
	wg         sync.WaitGroup
}

// NewSweepWorker builds the worker.
func NewSweepWorker(sessions repository.SessionRepository, revokes Enqueuer,
	dispatcher events.Dispatcher, logger *zap.Logger,
	interval time.Duration, batchSize int) *SweepWorker {
	return &SweepWorker{
		sessions:   sessions,
		revokes:    revokes,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start launches the sweep loop until ctx is cancelled.
func (w *SweepWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.SweepOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the sweep goroutine has stopped.
func (w *SweepWorker) Wait() {
	w.wg.Wait()
}

// SweepOnce runs a single bounded sweep cycle.
func (w *SweepWorker) SweepOnce(ctx context.Context) {
	removed, err := w.sessions.SweepExpired(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("sweep failed", zap.Error(err))
	}
	if len(removed) == 0 {
		return
	}

	w.logger.Info("sweep removed expired sessions", zap.Int("count", len(removed)))
	for _, mac := range removed {
		if !w.revokes.Enqueue(mac) {
			w.logger.Error("revocation queue full during sweep", zap.String("mac", mac))
		}
		if w.dispatcher != nil {
			_ = w.dispatcher.Publish(ctx, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventSessionExpired,
				MAC:       mac,
				Timestamp: time.Now(),
			})
		}
	}
}
