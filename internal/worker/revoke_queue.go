package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/config"
	"github.com/spec-kit/portal-service/internal/enforcer"
	"github.com/spec-kit/portal-service/internal/events"
)

// RevokeQueue retries failed enforcement revocations in the background with
// exponential backoff, decoupled from request handling. After the attempt
// budget is exhausted the failure is escalated through the event dispatcher
// and the error log.
type RevokeQueue struct {
	jobs        chan string
	enf         enforcer.Enforcer
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxAttempts int
	backoffBase time.Duration
	callTimeout time.Duration
	wg          sync.WaitGroup
}

// NewRevokeQueue builds the queue.
func NewRevokeQueue(enf enforcer.Enforcer, dispatcher events.Dispatcher, logger *zap.Logger,
	cfg config.RevokeConfig, callTimeout time.Duration) *RevokeQueue {
	return &RevokeQueue{
		jobs:        make(chan string, cfg.QueueSize),
		enf:         enf,
		dispatcher:  dispatcher,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase(),
		callTimeout: callTimeout,
	}
}

// Enqueue submits a MAC for background revocation. Returns false when the
// queue is full; the caller escalates instead of blocking.
func (q *RevokeQueue) Enqueue(mac string) bool {
	select {
	case q.jobs <- mac:
		return true
	default:
		return false
	}
}

// Start launches the worker goroutine. On cancellation the buffered jobs are
// drained with one final attempt each before the worker exits.
func (q *RevokeQueue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				q.drain(ctx)
				return
			case mac := <-q.jobs:
				q.process(ctx, mac)
			}
		}
	}()
}

// Wait blocks until the worker goroutine has stopped.
func (q *RevokeQueue) Wait() {
	q.wg.Wait()
}

func (q *RevokeQueue) process(ctx context.Context, mac string) {
	var lastErr error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.callTimeout)
		lastErr = q.enf.Revoke(cctx, mac)
		cancel()

		if lastErr == nil {
			q.logger.Info("deferred revoke succeeded",
				zap.String("mac", mac),
				zap.Int("attempt", attempt))
			return
		}

		if attempt == q.maxAttempts {
			break
		}
		backoff := q.backoffBase << (attempt - 1)
		select {
		case <-ctx.Done():
			q.escalate(ctx, mac, attempt, lastErr)
			return
		case <-time.After(backoff):
		}
	}

	q.escalate(ctx, mac, q.maxAttempts, lastErr)
}

// drain gives every job still buffered at shutdown one last revoke attempt;
// failures escalate instead of being dropped silently.
func (q *RevokeQueue) drain(ctx context.Context) {
	for {
		select {
		case mac := <-q.jobs:
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.callTimeout)
			err := q.enf.Revoke(cctx, mac)
			cancel()
			if err != nil {
				q.escalate(ctx, mac, 1, err)
			}
		default:
			return
		}
	}
}

func (q *RevokeQueue) escalate(ctx context.Context, mac string, attempts int, lastErr error) {
	q.logger.Error("revoke escalated",
		zap.String("mac", mac),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	if q.dispatcher != nil {
		_ = q.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRevokeEscalated,
			MAC:       mac,
			Timestamp: time.Now(),
			Payload: events.RevokeEscalatedPayload{
				Attempts: attempts,
				LastErr:  lastErr.Error(),
			},
		})
	}
}
