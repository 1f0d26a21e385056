package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/events"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

const testMAC = "aa:bb:cc:dd:ee:ff"

func guestVerifier() *staticVerifier {
	return &staticVerifier{username: "alice", password: "secret", role: "guest"}
}

func TestLoginSuccess(t *testing.T) {
	fx := newAuthFixture(t, guestVerifier(), &fakeEnforcer{})
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, testMAC, "alice", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() returned empty token")
	}
	if result.Policy.VLAN != 20 || result.Policy.PolicyName != "guest_policy" {
		t.Errorf("Login() policy = %+v", result.Policy)
	}

	sess, err := fx.sessions.Get(ctx, testMAC)
	if err != nil {
		t.Fatalf("Get() after login error = %v", err)
	}
	if sess.State != domain.SessionStateActive {
		t.Errorf("session state = %s, want %s", sess.State, domain.SessionStateActive)
	}
	if sess.Role != "guest" || sess.Token != result.Token {
		t.Errorf("session = %+v", sess)
	}

	if len(fx.enf.applied) != 1 || fx.enf.applied[0] != testMAC {
		t.Errorf("enforcer applied = %v", fx.enf.applied)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	fx := newAuthFixture(t, guestVerifier(), &fakeEnforcer{})

	_, err := fx.svc.Login(context.Background(), testMAC, "alice", "wrong")
	if err == nil {
		t.Fatal("Login() error = nil, want INVALID_CREDENTIALS")
	}
	if code := util.ToDomainError(err).Code; code != "INVALID_CREDENTIALS" {
		t.Errorf("error code = %s, want INVALID_CREDENTIALS", code)
	}

	if _, err := fx.sessions.Get(context.Background(), testMAC); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("session created despite rejected login: %v", err)
	}
	if len(fx.enf.applied) != 0 {
		t.Errorf("enforcer invoked despite rejected login: %v", fx.enf.applied)
	}
}

func TestLoginUnknownRole(t *testing.T) {
	verifier := &staticVerifier{username: "bob", password: "pw", role: "vip"}
	fx := newAuthFixture(t, verifier, &fakeEnforcer{})

	_, err := fx.svc.Login(context.Background(), testMAC, "bob", "pw")
	if err == nil {
		t.Fatal("Login() error = nil, want UNKNOWN_ROLE")
	}
	if code := util.ToDomainError(err).Code; code != "UNKNOWN_ROLE" {
		t.Errorf("error code = %s, want UNKNOWN_ROLE", code)
	}
}

func TestLoginInvalidMAC(t *testing.T) {
	fx := newAuthFixture(t, guestVerifier(), &fakeEnforcer{})

	_, err := fx.svc.Login(context.Background(), "not-a-mac", "alice", "secret")
	if err == nil {
		t.Fatal("Login() error = nil, want VALIDATION_FAILED")
	}
	if code := util.ToDomainError(err).Code; code != "VALIDATION_FAILED" {
		t.Errorf("error code = %s, want VALIDATION_FAILED", code)
	}
}

func TestLoginEnforcementFailureRollsBack(t *testing.T) {
	enf := &fakeEnforcer{applyErr: errors.New("control plane down")}
	fx := newAuthFixture(t, guestVerifier(), enf)
	ctx := context.Background()

	_, err := fx.svc.Login(ctx, testMAC, "alice", "secret")
	if err == nil {
		t.Fatal("Login() error = nil, want ENFORCEMENT_FAILED")
	}
	if code := util.ToDomainError(err).Code; code != "ENFORCEMENT_FAILED" {
		t.Errorf("error code = %s, want ENFORCEMENT_FAILED", code)
	}

	// No authorized-but-unenforced state may remain.
	if _, err := fx.sessions.Get(ctx, testMAC); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("session survived failed enforcement: %v", err)
	}
	// Partial rules get queued for teardown.
	if macs := fx.queue.enqueued(); len(macs) != 1 || macs[0] != testMAC {
		t.Errorf("revoke queue = %v, want [%s]", macs, testMAC)
	}
}

func TestLoginReplacesExistingSession(t *testing.T) {
	sessions := newSessionRepo(t)
	queue := &fakeQueue{}
	enf := &fakeEnforcer{}
	locks := NewKeyLock()
	guest := newAuthFixtureWith(t, sessions, queue, locks, guestVerifier(), enf)
	staff := newAuthFixtureWith(t, sessions, queue, locks,
		&staticVerifier{username: "carol", password: "pw", role: "staff"}, enf)
	ctx := context.Background()

	first, err := guest.Login(ctx, testMAC, "alice", "secret")
	if err != nil {
		t.Fatalf("Login(guest) error = %v", err)
	}
	second, err := staff.Login(ctx, testMAC, "carol", "pw")
	if err != nil {
		t.Fatalf("Login(staff) error = %v", err)
	}
	if first.Token == second.Token {
		t.Error("replacement login reused token")
	}

	sess, err := sessions.Get(ctx, testMAC)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.Role != "staff" || sess.Policy.VLAN != 10 {
		t.Errorf("replacement not reflected: %+v", sess)
	}
}

// activationHookRepo runs a hook just before the store write that promotes a
// session to ACTIVE, while the caller still holds the key lock.
type activationHookRepo struct {
	repository.SessionRepository
	once sync.Once
	hook func()
}

func (r *activationHookRepo) Put(ctx context.Context, sess *domain.Session) error {
	if sess.State == domain.SessionStateActive {
		r.once.Do(r.hook)
	}
	return r.SessionRepository.Put(ctx, sess)
}

// A logout issued during login's activation window must serialize against the
// same per-MAC lock: it either precedes activation or follows it, but the
// final state can never be an authorized session whose enforcement was
// already revoked.
func TestLogoutDuringActivationLeavesNoSession(t *testing.T) {
	base := newSessionRepo(t)
	locks := NewKeyLock()
	queue := &fakeQueue{}
	enf := &fakeEnforcer{}
	ctx := context.Background()

	logoutDone := make(chan error, 1)
	var logoutSvc *LogoutService
	repo := &activationHookRepo{SessionRepository: base}
	repo.hook = func() {
		go func() { logoutDone <- logoutSvc.Logout(ctx, testMAC) }()
		time.Sleep(100 * time.Millisecond)
	}

	authSvc := newAuthFixtureWith(t, repo, queue, locks, guestVerifier(), enf)
	logoutSvc = NewLogoutService(LogoutDependencies{
		Sessions:       repo,
		Enforcer:       enf,
		Revokes:        queue,
		Dispatcher:     events.NewInMemoryDispatcher(),
		Logger:         zap.NewNop(),
		Locks:          locks,
		EnforceTimeout: time.Second,
	})

	if _, err := authSvc.Login(ctx, testMAC, "alice", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := <-logoutDone; err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	status, err := NewStatusService(base).GetStatus(ctx, testMAC)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Authorized {
		t.Fatal("session authorized after logout completed")
	}
	if macs := enf.revokedMACs(); len(macs) != 1 || macs[0] != testMAC {
		t.Errorf("revoked = %v, want [%s]", macs, testMAC)
	}
}

func TestHeartbeatRenewsSession(t *testing.T) {
	fx := newAuthFixture(t, guestVerifier(), &fakeEnforcer{})
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, testMAC, "alice", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	status, token, err := fx.svc.Heartbeat(ctx, testMAC)
	if err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if !status.Authorized || status.Role != "guest" {
		t.Errorf("Heartbeat() status = %+v", status)
	}
	if status.TTLSeconds <= 0 {
		t.Errorf("Heartbeat() ttl = %d, want > 0", status.TTLSeconds)
	}
	if token == "" || token == result.Token {
		t.Error("Heartbeat() did not reissue token")
	}

	sess, err := fx.sessions.Get(ctx, testMAC)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.Token != token {
		t.Error("renewed token not persisted")
	}
}

func TestHeartbeatUnknownMAC(t *testing.T) {
	fx := newAuthFixture(t, guestVerifier(), &fakeEnforcer{})

	status, token, err := fx.svc.Heartbeat(context.Background(), testMAC)
	if err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if status.Authorized || token != "" {
		t.Errorf("Heartbeat(unknown) = %+v token=%q, want unauthorized", status, token)
	}
	if status.Role != "-" {
		t.Errorf("Heartbeat(unknown) role = %q, want placeholder", status.Role)
	}
}
