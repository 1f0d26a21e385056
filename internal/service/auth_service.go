package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/auth"
	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/enforcer"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/policy"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

// RevocationQueue accepts MACs whose enforcement must be torn down in the
// background. Enqueue is non-blocking and reports whether the job was accepted.
type RevocationQueue interface {
	Enqueue(mac string) bool
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token     string
	Policy    domain.PolicySnapshot
	ExpiresAt time.Time
}

// AuthService orchestrates credential verification, policy resolution,
// session persistence and network enforcement.
type AuthService struct {
	sessions   repository.SessionRepository
	verifier   CredentialVerifier
	resolver   *policy.Resolver
	enforcer   enforcer.Enforcer
	revokes    RevocationQueue
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger

	locks          *KeyLock
	enforceTimeout time.Duration
	now            func() time.Time
}

// AuthDependencies bundles what AuthService needs. Locks must be the same
// KeyLock instance handed to every other service mutating sessions.
type AuthDependencies struct {
	Sessions       repository.SessionRepository
	Verifier       CredentialVerifier
	Resolver       *policy.Resolver
	Enforcer       enforcer.Enforcer
	Revokes        RevocationQueue
	Tokens         *auth.TokenManager
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Locks          *KeyLock
	EnforceTimeout time.Duration
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyLock()
	}
	return &AuthService{
		sessions:       deps.Sessions,
		verifier:       deps.Verifier,
		resolver:       deps.Resolver,
		enforcer:       deps.Enforcer,
		revokes:        deps.Revokes,
		tokens:         deps.Tokens,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		locks:          locks,
		enforceTimeout: deps.EnforceTimeout,
		now:            time.Now,
	}
}

// Login authenticates the client and authorizes its MAC. The session is
// written in PENDING state before the control plane is invoked and promoted
// to ACTIVE only after enforcement succeeds; on enforcement failure the
// record is rolled back so no authorized-but-unenforced state is ever
// observable.
func (s *AuthService) Login(ctx context.Context, mac, username, password string) (*LoginResult, error) {
	mac, err := domain.NormalizeMAC(mac)
	if err != nil {
		return nil, util.NewValidationError(err.Error(), nil)
	}

	role, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.resolver.Resolve(role)
	if err != nil {
		return nil, err
	}
	ttl, err := s.resolver.SessionTTL(role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	token, err := s.tokens.Generate(mac, role, expiresAt)
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	sess := &domain.Session{
		MAC:       mac,
		Username:  username,
		Role:      role,
		Token:     token,
		State:     domain.SessionStatePending,
		Policy:    snapshot,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	replaced, err := s.writePending(ctx, sess)
	if err != nil {
		return nil, err
	}

	// Enforcement runs outside the key lock on a detached context: a client
	// that drops its deadline mid-call must not leave the transition
	// half-finished.
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.enforceTimeout)
	applyErr := s.enforcer.Apply(ectx, mac, snapshot)
	cancel()

	if applyErr != nil {
		s.rollback(ctx, sess)
		s.logger.Warn("login enforcement failed",
			zap.String("mac", mac),
			zap.String("role", role),
			zap.Error(applyErr))
		s.publish(ctx, events.EventEnforcementFailed, mac, events.EnforcementFailedPayload{
			Role:   role,
			Reason: applyErr.Error(),
		})
		return nil, util.NewEnforcementFailed(applyErr)
	}

	if err := s.activate(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.String("mac", mac),
		zap.String("role", role),
		zap.Int("vlan", snapshot.VLAN),
		zap.Bool("replaced", replaced))
	s.publish(ctx, events.EventSessionCreated, mac, events.SessionCreatedPayload{
		Username:   username,
		Role:       role,
		Policy:     snapshot,
		TTLSeconds: sess.TTL(now),
		Replaced:   replaced,
	})

	return &LoginResult{Token: token, Policy: snapshot, ExpiresAt: expiresAt}, nil
}

// Heartbeat renews an active session: expiry is extended by the role's TTL,
// the policy is re-resolved into a fresh snapshot and a new token is issued.
// Absent or no-longer-authorized sessions renew to nothing and report
// unauthorized without error.
func (s *AuthService) Heartbeat(ctx context.Context, mac string) (domain.Status, string, error) {
	mac, err := domain.NormalizeMAC(mac)
	if err != nil {
		return domain.UnauthorizedStatus(), "", util.NewValidationError(err.Error(), nil)
	}

	unlock := s.locks.lock(mac)
	defer unlock()

	sess, err := s.sessions.Get(ctx, mac)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return domain.UnauthorizedStatus(), "", nil
	}
	if err != nil {
		return domain.UnauthorizedStatus(), "", util.NewStoreUnavailable(err)
	}

	now := s.now()
	if !sess.Authorized(now) {
		return domain.UnauthorizedStatus(), "", nil
	}

	snapshot, err := s.resolver.Resolve(sess.Role)
	if err != nil {
		return domain.UnauthorizedStatus(), "", err
	}
	ttl, err := s.resolver.SessionTTL(sess.Role)
	if err != nil {
		return domain.UnauthorizedStatus(), "", err
	}

	expiresAt := now.Add(ttl)
	token, err := s.tokens.Generate(mac, sess.Role, expiresAt)
	if err != nil {
		return domain.UnauthorizedStatus(), "", util.NewInternalError(err)
	}

	sess.Token = token
	sess.Policy = snapshot
	sess.ExpiresAt = expiresAt
	if err := s.sessions.Put(ctx, sess); err != nil {
		return domain.UnauthorizedStatus(), "", util.NewStoreUnavailable(err)
	}

	s.publish(ctx, events.EventSessionRenewed, mac, events.SessionRenewedPayload{
		Role:       sess.Role,
		Policy:     snapshot,
		TTLSeconds: sess.TTL(now),
	})

	return domain.Status{
		Authorized: true,
		Role:       sess.Role,
		TTLSeconds: sess.TTL(now),
		Policy:     snapshot,
	}, token, nil
}

// writePending replaces any existing record with the new pending session.
func (s *AuthService) writePending(ctx context.Context, sess *domain.Session) (bool, error) {
	unlock := s.locks.lock(sess.MAC)
	defer unlock()

	replaced := false
	if _, err := s.sessions.Get(ctx, sess.MAC); err == nil {
		replaced = true
	} else if !errors.Is(err, repository.ErrSessionNotFound) {
		return false, util.NewStoreUnavailable(err)
	}

	if err := s.sessions.Put(ctx, sess); err != nil {
		return false, util.NewStoreUnavailable(err)
	}
	return replaced, nil
}

// activate promotes the pending session, unless a concurrent login already
// replaced it — then the later login owns the record and we leave it alone.
func (s *AuthService) activate(ctx context.Context, sess *domain.Session) error {
	unlock := s.locks.lock(sess.MAC)
	defer unlock()

	current, err := s.sessions.Get(ctx, sess.MAC)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	if current.Token != sess.Token {
		return nil
	}

	sess.State = domain.SessionStateActive
	if err := s.sessions.Put(ctx, sess); err != nil {
		return util.NewStoreUnavailable(err)
	}
	return nil
}

// rollback retracts a pending session after a failed Apply. Whatever partial
// rules the control plane may have installed are queued for revocation.
func (s *AuthService) rollback(ctx context.Context, sess *domain.Session) {
	unlock := s.locks.lock(sess.MAC)
	defer unlock()

	current, err := s.sessions.Get(ctx, sess.MAC)
	if err != nil || current.Token != sess.Token {
		return
	}
	if _, err := s.sessions.Delete(ctx, sess.MAC); err != nil {
		s.logger.Error("rollback delete failed", zap.String("mac", sess.MAC), zap.Error(err))
		return
	}
	if s.revokes != nil && !s.revokes.Enqueue(sess.MAC) {
		s.logger.Error("revocation queue full during rollback", zap.String("mac", sess.MAC))
	}
}

func (s *AuthService) publish(ctx context.Context, typ events.EventType, mac string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		MAC:       mac,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
