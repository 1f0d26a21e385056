package events

import (
	"time"

	"github.com/spec-kit/portal-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionCreated    EventType = "session_created"
	EventSessionRenewed    EventType = "session_renewed"
	EventSessionRevoked    EventType = "session_revoked"
	EventSessionExpired    EventType = "session_expired"
	EventRevokeDeferred    EventType = "revoke_deferred"
	EventRevokeEscalated   EventType = "revoke_escalated"
	EventEnforcementFailed EventType = "enforcement_failed"
)

// AllTypes lists every session lifecycle event type.
func AllTypes() []EventType {
	return []EventType{
		EventSessionCreated,
		EventSessionRenewed,
		EventSessionRevoked,
		EventSessionExpired,
		EventRevokeDeferred,
		EventRevokeEscalated,
		EventEnforcementFailed,
	}
}

// Event represents a session lifecycle event emitted by services and workers.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	MAC       string      `json:"mac"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionCreatedPayload payload.
type SessionCreatedPayload struct {
	Username   string                `json:"username"`
	Role       string                `json:"role"`
	Policy     domain.PolicySnapshot `json:"policy"`
	TTLSeconds int64                 `json:"ttl"`
	Replaced   bool                  `json:"replaced"`
}

// SessionRenewedPayload payload.
type SessionRenewedPayload struct {
	Role       string                `json:"role"`
	Policy     domain.PolicySnapshot `json:"policy"`
	TTLSeconds int64                 `json:"ttl"`
}

// SessionRevokedPayload payload.
type SessionRevokedPayload struct {
	Existed  bool `json:"existed"`
	Deferred bool `json:"deferred"`
}

// RevokeDeferredPayload payload.
type RevokeDeferredPayload struct {
	Reason string `json:"reason"`
}

// RevokeEscalatedPayload payload.
type RevokeEscalatedPayload struct {
	Attempts int    `json:"attempts"`
	LastErr  string `json:"last_error"`
}

// EnforcementFailedPayload payload.
type EnforcementFailedPayload struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}
