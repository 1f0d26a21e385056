package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/repository"
)

type recordingQueue struct {
	mu   sync.Mutex
	macs []string
}

func (q *recordingQueue) Enqueue(mac string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.macs = append(q.macs, mac)
	return true
}

func (q *recordingQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.macs...)
}

func newSweepRepo(t *testing.T) repository.SessionRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewSessionRepository(client, time.Minute)
}

func sweepSession(mac string, expiresAt time.Time) *domain.Session {
	return &domain.Session{
		MAC:       mac,
		Username:  "alice",
		Role:      "guest",
		Token:     "tok",
		State:     domain.SessionStateActive,
		Policy:    domain.PolicySnapshot{VLAN: 20, IPSet: "portal_guest", PolicyName: "guest_policy"},
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestSweepOnceRemovesExpiredAndEnqueuesRevokes(t *testing.T) {
	repo := newSweepRepo(t)
	queue := &recordingQueue{}
	dispatcher := events.NewInMemoryDispatcher()

	expired := make(chan events.Event, 4)
	dispatcher.Subscribe(events.EventSessionExpired, func(_ context.Context, e events.Event) error {
		expired <- e
		return nil
	})

	ctx := context.Background()
	if err := repo.Put(ctx, sweepSession("aa:bb:cc:dd:ee:01", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := repo.Put(ctx, sweepSession("aa:bb:cc:dd:ee:02", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	w := NewSweepWorker(repo, queue, dispatcher, zap.NewNop(), time.Minute, 10)
	w.SweepOnce(ctx)

	if macs := queue.enqueued(); len(macs) != 1 || macs[0] != "aa:bb:cc:dd:ee:01" {
		t.Errorf("enqueued = %v, want [aa:bb:cc:dd:ee:01]", macs)
	}
	select {
	case e := <-expired:
		if e.MAC != "aa:bb:cc:dd:ee:01" {
			t.Errorf("expired event MAC = %s", e.MAC)
		}
	default:
		t.Error("no expiry event published")
	}

	if _, err := repo.Get(ctx, "aa:bb:cc:dd:ee:01"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("expired session still present: %v", err)
	}
	if _, err := repo.Get(ctx, "aa:bb:cc:dd:ee:02"); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}

func TestSweepOnceRespectsBatchLimit(t *testing.T) {
	repo := newSweepRepo(t)
	queue := &recordingQueue{}
	ctx := context.Background()

	macs := []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03"}
	for _, mac := range macs {
		if err := repo.Put(ctx, sweepSession(mac, time.Now().Add(-time.Minute))); err != nil {
			t.Fatalf("Put(%s) error = %v", mac, err)
		}
	}

	w := NewSweepWorker(repo, queue, events.NewInMemoryDispatcher(), zap.NewNop(), time.Minute, 2)
	w.SweepOnce(ctx)

	if n := len(queue.enqueued()); n > 2 {
		t.Errorf("sweep processed %d sessions, batch limit is 2", n)
	}
}
