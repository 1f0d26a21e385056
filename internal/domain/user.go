package domain

import "time"

// PortalUser is an account the portal authenticates against. The role drives
// which network policy a successful login receives.
type PortalUser struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
