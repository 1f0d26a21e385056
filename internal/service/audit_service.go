package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-service/internal/config"
	"github.com/spec-kit/portal-service/internal/events"
)

// AuditService writes a tamper-evident trail of session lifecycle events.
// Each record is signed with HMAC-SHA256 over its canonical JSON form so a
// downstream log pipeline can verify integrity.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
	secret     []byte
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		secret:     []byte(cfg.Secret),
	}
}

// RegisterHandlers subscribes to every session event type.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil || !a.cfg.Enabled {
		return
	}
	for _, typ := range events.AllTypes() {
		a.dispatcher.Subscribe(typ, a.handle)
	}
}

type auditRecord struct {
	ID      string      `json:"id"`
	TS      int64       `json:"ts"`
	Event   string      `json:"event"`
	MAC     string      `json:"mac"`
	Payload interface{} `json:"payload"`
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	record := auditRecord{
		ID:      event.ID,
		TS:      event.Timestamp.Unix(),
		Event:   string(event.Type),
		MAC:     event.MAC,
		Payload: event.Payload,
	}

	raw, err := json.Marshal(record)
	if err != nil {
		a.logger.Error("audit record marshal failed", zap.Error(err))
		return err
	}

	a.logger.Info("audit",
		zap.String("event", record.Event),
		zap.String("mac", record.MAC),
		zap.Any("payload", record.Payload),
		zap.String("sig", a.Sign(raw)))
	return nil
}

// Sign computes the hex HMAC-SHA256 of a canonical record.
func (a *AuditService) Sign(raw []byte) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
