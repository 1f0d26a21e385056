package domain

import "time"

// SessionState tracks the enforcement lifecycle of a session. A session is
// written PENDING before the network control plane is invoked and promoted to
// ACTIVE only once enforcement succeeded, so readers never observe an
// authorized-but-unenforced record.
type SessionState string

const (
	SessionStatePending  SessionState = "PENDING"
	SessionStateActive   SessionState = "ACTIVE"
	SessionStateRevoking SessionState = "REVOKING"
)

// PolicySnapshot is the network policy resolved for a role at login time.
// It is immutable once embedded in a session; renewal re-resolves the role
// into a fresh snapshot instead of mutating the old one.
type PolicySnapshot struct {
	VLAN       int    `json:"vlan"`
	IPSet      string `json:"ipset"`
	PolicyName string `json:"policy"`
}

// Session binds a client MAC to an authorization decision and its policy.
type Session struct {
	MAC       string         `json:"mac"`
	Username  string         `json:"username"`
	Role      string         `json:"role"`
	Token     string         `json:"token"`
	State     SessionState   `json:"state"`
	Policy    PolicySnapshot `json:"policy"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Authorized reports whether the session grants access at the given instant.
func (s *Session) Authorized(now time.Time) bool {
	return s != nil && s.State == SessionStateActive && now.Before(s.ExpiresAt)
}

// TTL returns the remaining lifetime in whole seconds, never negative.
func (s *Session) TTL(now time.Time) int64 {
	if s == nil {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// Status is the read-model returned to clients polling authorization state.
// Placeholder values are used when no active session exists so that every
// field the client dereferences is always present.
type Status struct {
	Authorized bool
	Role       string
	TTLSeconds int64
	Policy     PolicySnapshot
}

// UnauthorizedStatus is the placeholder status for absent or expired sessions.
func UnauthorizedStatus() Status {
	return Status{Authorized: false, Role: "-", TTLSeconds: 0}
}
