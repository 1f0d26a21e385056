package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/portal-service/internal/domain"
)

// PortalUserRepository defines persistence access for portal accounts.
type PortalUserRepository interface {
	Create(ctx context.Context, user *domain.PortalUser) error
	GetByUsername(ctx context.Context, username string) (*domain.PortalUser, error)
}

type portalUserRepository struct {
	pool *pgxpool.Pool
}

// NewPortalUserRepository returns a Postgres-backed implementation.
func NewPortalUserRepository(pool *pgxpool.Pool) PortalUserRepository {
	return &portalUserRepository{pool: pool}
}

func (r *portalUserRepository) Create(ctx context.Context, user *domain.PortalUser) error {
	const query = `
        INSERT INTO portal_users (username, password_hash, role, active)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *portalUserRepository) GetByUsername(ctx context.Context, username string) (*domain.PortalUser, error) {
	const query = `
        SELECT id, username, password_hash, role, active, created_at, updated_at
        FROM portal_users WHERE username=$1`

	var user domain.PortalUser
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// IsNoRows reports whether err is the pgx no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
