package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/portal-service/internal/domain"
)

const (
	sessionKeyPrefix = "portal:session:"
	sessionIndexKey  = "portal:sessions"
)

// ErrSessionNotFound is returned when no record exists for a MAC.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository owns all session records, keyed by normalized MAC.
type SessionRepository interface {
	// Put atomically upserts the session, replacing any record for the MAC.
	Put(ctx context.Context, sess *domain.Session) error
	// Get returns the stored session or ErrSessionNotFound.
	Get(ctx context.Context, mac string) (*domain.Session, error)
	// Delete removes the record, reporting whether one existed.
	Delete(ctx context.Context, mac string) (bool, error)
	// SweepExpired removes up to limit expired records and returns their
	// MACs so the caller can tear down enforcement.
	SweepExpired(ctx context.Context, limit int) ([]string, error)
}

type sessionRepository struct {
	client *redis.Client
	grace  time.Duration
	now    func() time.Time
}

// NewSessionRepository returns a Redis-backed implementation. Records carry a
// Redis TTL of session lifetime plus grace: the Redis expiry is only a
// backstop, the sweep is what observes expiry and triggers revocation.
func NewSessionRepository(client *redis.Client, grace time.Duration) SessionRepository {
	return &sessionRepository{client: client, grace: grace, now: time.Now}
}

func sessionKey(mac string) string {
	return sessionKeyPrefix + mac
}

func (r *sessionRepository) Put(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(r.now()) + r.grace
	if ttl <= 0 {
		ttl = r.grace
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.MAC), data, ttl)
	pipe.SAdd(ctx, sessionIndexKey, sess.MAC)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put session %s: %w", sess.MAC, err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, mac string) (*domain.Session, error) {
	val, err := r.client.Get(ctx, sessionKey(mac)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", mac, err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", mac, err)
	}
	return &sess, nil
}

func (r *sessionRepository) Delete(ctx context.Context, mac string) (bool, error) {
	pipe := r.client.TxPipeline()
	delCmd := pipe.Del(ctx, sessionKey(mac))
	pipe.SRem(ctx, sessionIndexKey, mac)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete session %s: %w", mac, err)
	}
	return delCmd.Val() > 0, nil
}

// sweepDeleteScript removes a record only while its stored value is still the
// one the sweep observed. A record replaced by a concurrent login compares
// unequal and survives.
var sweepDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[2])
	return 1
end
return 0`)

func (r *sessionRepository) SweepExpired(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	macs, _, err := r.client.SScan(ctx, sessionIndexKey, 0, "", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("scan session index: %w", err)
	}
	if len(macs) > limit {
		macs = macs[:limit]
	}

	now := r.now()
	var removed []string
	for _, mac := range macs {
		raw, err := r.client.Get(ctx, sessionKey(mac)).Result()
		if errors.Is(err, redis.Nil) {
			// Redis TTL backstop already dropped the record; the index entry
			// is dangling and the MAC still needs de-enforcement.
			if err := r.client.SRem(ctx, sessionIndexKey, mac).Err(); err != nil {
				return removed, fmt.Errorf("prune index %s: %w", mac, err)
			}
			removed = append(removed, mac)
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("get session %s: %w", mac, err)
		}

		var sess domain.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return removed, fmt.Errorf("decode session %s: %w", mac, err)
		}
		if now.Before(sess.ExpiresAt) {
			continue
		}

		deleted, err := r.deleteIfUnchanged(ctx, mac, raw)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed = append(removed, mac)
		}
	}
	return removed, nil
}

func (r *sessionRepository) deleteIfUnchanged(ctx context.Context, mac, raw string) (bool, error) {
	res, err := sweepDeleteScript.Run(ctx, r.client,
		[]string{sessionKey(mac), sessionIndexKey}, raw, mac).Int()
	if err != nil {
		return false, fmt.Errorf("conditional delete %s: %w", mac, err)
	}
	return res == 1, nil
}
