package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/auth"
	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/policy"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

const testPolicyTable = `
roles:
  - name: guest
    vlan: 20
    ipset: portal_guest
    policy: guest_policy
    sessionTimeout: 3600
  - name: staff
    vlan: 10
    ipset: portal_staff
    policy: staff_policy
    sessionTimeout: 7200
`

func newSessionRepo(t *testing.T) repository.SessionRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewSessionRepository(client, time.Minute)
}

func testResolver(t *testing.T) *policy.Resolver {
	t.Helper()
	resolver, err := policy.Parse([]byte(testPolicyTable))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return resolver
}

// staticVerifier maps one fixed credential pair to a role.
type staticVerifier struct {
	username string
	password string
	role     string
	err      error
}

func (v *staticVerifier) Verify(_ context.Context, username, password string) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	if username != v.username || password != v.password {
		return "", util.NewInvalidCredentials()
	}
	return v.role, nil
}

// fakeEnforcer records control-plane calls and fails on demand.
type fakeEnforcer struct {
	mu        sync.Mutex
	applyErr  error
	revokeErr error
	applied   []string
	revoked   []string
}

func (f *fakeEnforcer) Apply(_ context.Context, mac string, _ domain.PolicySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, mac)
	return f.applyErr
}

func (f *fakeEnforcer) Revoke(_ context.Context, mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, mac)
	return f.revokeErr
}

func (f *fakeEnforcer) revokedMACs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.revoked...)
}

// fakeQueue records enqueued MACs; full simulates a saturated queue.
type fakeQueue struct {
	mu   sync.Mutex
	macs []string
	full bool
}

func (q *fakeQueue) Enqueue(mac string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.macs = append(q.macs, mac)
	return true
}

func (q *fakeQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.macs...)
}

type authFixture struct {
	svc      *AuthService
	sessions repository.SessionRepository
	enf      *fakeEnforcer
	queue    *fakeQueue
}

func newAuthFixture(t *testing.T, verifier CredentialVerifier, enf *fakeEnforcer) *authFixture {
	t.Helper()
	sessions := newSessionRepo(t)
	queue := &fakeQueue{}
	svc := newAuthFixtureWith(t, sessions, queue, NewKeyLock(), verifier, enf)
	return &authFixture{svc: svc, sessions: sessions, enf: enf, queue: queue}
}

func newAuthFixtureWith(t *testing.T, sessions repository.SessionRepository, queue *fakeQueue,
	locks *KeyLock, verifier CredentialVerifier, enf *fakeEnforcer) *AuthService {
	t.Helper()
	return NewAuthService(AuthDependencies{
		Sessions:       sessions,
		Verifier:       verifier,
		Resolver:       testResolver(t),
		Enforcer:       enf,
		Revokes:        queue,
		Tokens:         auth.NewTokenManager("test-secret"),
		Dispatcher:     events.NewInMemoryDispatcher(),
		Logger:         zap.NewNop(),
		Locks:          locks,
		EnforceTimeout: time.Second,
	})
}
