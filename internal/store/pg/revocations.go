package pg

import (
	"context"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// RevokeDocument inserta el registro y flipea el documento a REVOKED en la
// misma tx. El PK sobre document_id da el idempotent-reject: segunda
// revocación → unique violation → core.ErrConflict, sin tocar el estado.
func (s *Store) RevokeDocument(ctx context.Context, rec *core.RevocationRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const qRec = `
		INSERT INTO revocations (document_id, institution_id, reason, revoked_by, revoked_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, qRec,
		rec.DocumentID, rec.InstitutionID, rec.Reason, rec.RevokedBy, rec.RevokedAt); err != nil {
		return mapErr(err)
	}

	const qDoc = `UPDATE documents SET status = 'REVOKED' WHERE id = $1`
	ct, err := tx.Exec(ctx, qDoc, rec.DocumentID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *Store) GetRevocation(ctx context.Context, documentID string) (*core.RevocationRecord, error) {
	const q = `
		SELECT document_id, institution_id, reason, revoked_by, revoked_at
		FROM revocations WHERE document_id = $1`
	var rec core.RevocationRecord
	err := s.pool.QueryRow(ctx, q, documentID).Scan(
		&rec.DocumentID, &rec.InstitutionID, &rec.Reason, &rec.RevokedBy, &rec.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}
