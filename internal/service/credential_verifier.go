package service

import (
	"context"

	"github.com/spec-kit/portal-service/internal/auth"
	"github.com/spec-kit/portal-service/internal/repository"
	"github.com/spec-kit/portal-service/pkg/util"
)

// CredentialVerifier validates portal credentials and yields the account role.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (string, error)
}

type dbCredentialVerifier struct {
	users     repository.PortalUserRepository
	passwords *auth.Passwords
}

// NewCredentialVerifier verifies credentials against the portal account store.
func NewCredentialVerifier(users repository.PortalUserRepository, passwords *auth.Passwords) CredentialVerifier {
	return &dbCredentialVerifier{users: users, passwords: passwords}
}

func (v *dbCredentialVerifier) Verify(ctx context.Context, username, password string) (string, error) {
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNoRows(err) {
			return "", util.NewInvalidCredentials()
		}
		return "", util.NewStoreUnavailable(err)
	}
	if !user.Active {
		return "", util.NewInvalidCredentials()
	}
	if err := v.passwords.Compare(user.PasswordHash, password); err != nil {
		return "", util.NewInvalidCredentials()
	}
	return user.Role, nil
}
