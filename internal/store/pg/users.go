package pg

import (
	"context"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	const q = `
		INSERT INTO users (id, institution_id, email, role, verified, whitelisted_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, q,
		u.ID, u.InstitutionID, u.Email, u.Role, u.Verified,
		u.WhitelistedAt, u.RevokedAt, u.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	const q = `
		SELECT id, institution_id, email, role, verified, whitelisted_at, revoked_at, created_at
		FROM users WHERE id = $1`
	var u core.User
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.InstitutionID, &u.Email, &u.Role, &u.Verified,
		&u.WhitelistedAt, &u.RevokedAt, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
