package pg

import (
	"context"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// AppendKeyVersion agrega la entrada al historial y bumpea
// current_key_version + public_key_pem de la institución en la misma tx.
// El historial es append-only: acá no hay UPDATE sobre filas existentes.
func (s *Store) AppendKeyVersion(ctx context.Context, kv *core.KeyVersion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const qKey = `
		INSERT INTO institution_keys (institution_id, version, public_key_pem, encrypted_private_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, qKey,
		kv.InstitutionID, kv.Version, kv.PublicKeyPEM, kv.EncryptedPrivateKey, kv.CreatedAt); err != nil {
		return mapErr(err)
	}

	const qInst = `
		UPDATE institutions SET current_key_version = $2, public_key_pem = $3 WHERE id = $1`
	ct, err := tx.Exec(ctx, qInst, kv.InstitutionID, kv.Version, kv.PublicKeyPEM)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *Store) GetKeyVersion(ctx context.Context, institutionID string, version int) (*core.KeyVersion, error) {
	const q = `
		SELECT institution_id, version, public_key_pem, encrypted_private_key, created_at, revoked_at
		FROM institution_keys WHERE institution_id = $1 AND version = $2`
	var kv core.KeyVersion
	err := s.pool.QueryRow(ctx, q, institutionID, version).Scan(
		&kv.InstitutionID, &kv.Version, &kv.PublicKeyPEM,
		&kv.EncryptedPrivateKey, &kv.CreatedAt, &kv.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &kv, nil
}

func (s *Store) ListKeyVersions(ctx context.Context, institutionID string) ([]core.KeyVersion, error) {
	const q = `
		SELECT institution_id, version, public_key_pem, encrypted_private_key, created_at, revoked_at
		FROM institution_keys WHERE institution_id = $1 ORDER BY version ASC`
	rows, err := s.pool.Query(ctx, q, institutionID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.KeyVersion
	for rows.Next() {
		var kv core.KeyVersion
		if err := rows.Scan(&kv.InstitutionID, &kv.Version, &kv.PublicKeyPEM,
			&kv.EncryptedPrivateKey, &kv.CreatedAt, &kv.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// MarkKeyVersionRevoked: único campo mutable del historial, solo ante
// compromiso de clave. Idempotente (no pisa un revoked_at previo).
func (s *Store) MarkKeyVersionRevoked(ctx context.Context, institutionID string, version int) error {
	const q = `
		UPDATE institution_keys SET revoked_at = NOW()
		WHERE institution_id = $1 AND version = $2 AND revoked_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, institutionID, version)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
