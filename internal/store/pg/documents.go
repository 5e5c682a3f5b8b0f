package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// execer cubre pool y tx: el INSERT de documentos se comparte entre el alta
// simple y la variante con supersession transaccional.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertDocument(ctx context.Context, db execer, d *core.Document) error {
	const q = `
		INSERT INTO documents
			(id, institution_id, recipient_id, doc_type, status, issued_at,
			 hash_hex, signature_b64, algorithm, key_version, issuer_id, issuer_email, file_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := db.Exec(ctx, q,
		d.ID, d.InstitutionID, d.RecipientID, d.Type, d.Status, d.IssuedAt,
		d.Metadata.HashHex, d.Metadata.SignatureB64, d.Metadata.Algorithm,
		d.Metadata.KeyVersion, d.Metadata.IssuerID, d.Metadata.IssuerEmail, d.Metadata.FileRef)
	return mapErr(err)
}

func (s *Store) CreateDocument(ctx context.Context, d *core.Document) error {
	return insertDocument(ctx, s.pool, d)
}

// CreateDocumentSuperseding inserta el documento nuevo y marca el previo
// SUPERSEDED en la misma tx, espejo del patrón de RevokeDocument: si el
// insert falla, el previo sigue ACTIVE.
func (s *Store) CreateDocumentSuperseding(ctx context.Context, d *core.Document, prevID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertDocument(ctx, tx, d); err != nil {
		return err
	}

	const qPrev = `UPDATE documents SET status = 'SUPERSEDED' WHERE id = $1 AND status = 'ACTIVE'`
	ct, err := tx.Exec(ctx, qPrev, prevID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	return tx.Commit(ctx)
}

const docColumns = `
	id, institution_id, recipient_id, doc_type, status, issued_at,
	hash_hex, signature_b64, algorithm, key_version, issuer_id, issuer_email, file_ref`

func scanDocument(row interface{ Scan(...any) error }) (*core.Document, error) {
	var d core.Document
	err := row.Scan(
		&d.ID, &d.InstitutionID, &d.RecipientID, &d.Type, &d.Status, &d.IssuedAt,
		&d.Metadata.HashHex, &d.Metadata.SignatureB64, &d.Metadata.Algorithm,
		&d.Metadata.KeyVersion, &d.Metadata.IssuerID, &d.Metadata.IssuerEmail, &d.Metadata.FileRef)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	return scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1`, id))
}

func (s *Store) SetDocumentStatus(ctx context.Context, id string, status core.DocumentStatus) error {
	const q = `UPDATE documents SET status = $2 WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) FindActiveDocument(ctx context.Context, institutionID, recipientID, docType string) (*core.Document, error) {
	return scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+docColumns+` FROM documents
		 WHERE institution_id = $1 AND recipient_id = $2 AND doc_type = $3 AND status = 'ACTIVE'
		 ORDER BY issued_at DESC LIMIT 1`,
		institutionID, recipientID, docType))
}

// DeleteDocument: borrado administrativo. NO toca revocations (el ledger
// sobrevive al documento por diseño).
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
