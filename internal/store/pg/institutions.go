package pg

import (
	"context"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// CreateInstitution inserta la institución junto con su primera entrada de
// historial en la misma tx (invariante: current_key_version siempre tiene
// fila en institution_keys).
func (s *Store) CreateInstitution(ctx context.Context, inst *core.Institution, first *core.KeyVersion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const qInst = `
		INSERT INTO institutions (id, name, email_domain, status, current_key_version, public_key_pem, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, qInst,
		inst.ID, inst.Name, inst.EmailDomain, inst.Status,
		first.Version, first.PublicKeyPEM, inst.CreatedAt); err != nil {
		return mapErr(err)
	}

	const qKey = `
		INSERT INTO institution_keys (institution_id, version, public_key_pem, encrypted_private_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, qKey,
		first.InstitutionID, first.Version, first.PublicKeyPEM,
		first.EncryptedPrivateKey, first.CreatedAt); err != nil {
		return mapErr(err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetInstitution(ctx context.Context, id string) (*core.Institution, error) {
	const q = `
		SELECT id, name, email_domain, status, current_key_version, public_key_pem, created_at
		FROM institutions WHERE id = $1`
	var inst core.Institution
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&inst.ID, &inst.Name, &inst.EmailDomain, &inst.Status,
		&inst.CurrentKeyVersion, &inst.PublicKeyPEM, &inst.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &inst, nil
}

func (s *Store) SetInstitutionStatus(ctx context.Context, id string, status core.InstitutionStatus) error {
	const q = `UPDATE institutions SET status = $2 WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
