package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/enforcer"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

// LogoutService revokes sessions. The store deletion is authoritative:
// clients observe unauthorized immediately, and a failed revoke call becomes
// background remediation work instead of a request failure.
type LogoutService struct {
	sessions   repository.SessionRepository
	enforcer   enforcer.Enforcer
	revokes    RevocationQueue
	dispatcher events.Dispatcher
	logger     *zap.Logger

	locks          *KeyLock
	enforceTimeout time.Duration
	now            func() time.Time
}

// LogoutDependencies bundles what LogoutService needs. Locks must be the same
// KeyLock instance handed to every other service mutating sessions.
type LogoutDependencies struct {
	Sessions       repository.SessionRepository
	Enforcer       enforcer.Enforcer
	Revokes        RevocationQueue
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Locks          *KeyLock
	EnforceTimeout time.Duration
}

// NewLogoutService builds the service.
func NewLogoutService(deps LogoutDependencies) *LogoutService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyLock()
	}
	return &LogoutService{
		sessions:       deps.Sessions,
		enforcer:       deps.Enforcer,
		revokes:        deps.Revokes,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		locks:          locks,
		enforceTimeout: deps.EnforceTimeout,
		now:            time.Now,
	}
}

// Logout deletes the session for a MAC and tears down its enforcement.
// Idempotent: a MAC with no session is a successful no-op.
func (s *LogoutService) Logout(ctx context.Context, mac string) error {
	mac, err := domain.NormalizeMAC(mac)
	if err != nil {
		return util.NewValidationError(err.Error(), nil)
	}

	unlock := s.locks.lock(mac)
	existed, err := s.sessions.Delete(ctx, mac)
	unlock()
	if err != nil {
		return util.NewStoreUnavailable(err)
	}

	deferred := false
	if existed {
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.enforceTimeout)
		revokeErr := s.enforcer.Revoke(ectx, mac)
		cancel()

		if revokeErr != nil {
			deferred = true
			s.logger.Warn("revoke failed, deferring to retry queue",
				zap.String("mac", mac),
				zap.Error(revokeErr))
			if s.revokes == nil || !s.revokes.Enqueue(mac) {
				s.logger.Error("revocation queue full, revoke lost to escalation",
					zap.String("mac", mac))
			}
			if s.dispatcher != nil {
				_ = s.dispatcher.Publish(ctx, events.Event{
					ID:        uuid.NewString(),
					Type:      events.EventRevokeDeferred,
					MAC:       mac,
					Timestamp: s.now(),
					Payload:   events.RevokeDeferredPayload{Reason: revokeErr.Error()},
				})
			}
		}
	}

	if existed && s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSessionRevoked,
			MAC:       mac,
			Timestamp: s.now(),
			Payload:   events.SessionRevokedPayload{Existed: existed, Deferred: deferred},
		})
	}

	return nil
}
