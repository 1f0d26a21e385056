package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/portal-service/internal/domain"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

// StatusService answers read-only authorization queries. It never blocks on
// enforcement state: the store is the single source of truth.
type StatusService struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

// NewStatusService builds the service.
func NewStatusService(sessions repository.SessionRepository) *StatusService {
	return &StatusService{sessions: sessions, now: time.Now}
}

// GetStatus reports whether a MAC is authorized. Missing, expired and
// still-pending sessions all yield the unauthorized placeholder rather than
// an error; only malformed input and store outages fail.
func (s *StatusService) GetStatus(ctx context.Context, mac string) (domain.Status, error) {
	mac, err := domain.NormalizeMAC(mac)
	if err != nil {
		return domain.UnauthorizedStatus(), util.NewValidationError(err.Error(), nil)
	}

	sess, err := s.sessions.Get(ctx, mac)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return domain.UnauthorizedStatus(), nil
	}
	if err != nil {
		return domain.UnauthorizedStatus(), util.NewStoreUnavailable(err)
	}

	now := s.now()
	if !sess.Authorized(now) {
		return domain.UnauthorizedStatus(), nil
	}

	return domain.Status{
		Authorized: true,
		Role:       sess.Role,
		TTLSeconds: sess.TTL(now),
		Policy:     sess.Policy,
	}, nil
}
