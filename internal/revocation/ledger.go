// Package revocation es el registro durable de documentos revocados.
// La revocación es terminal y one-way: re-revocar con otra razón se rechaza
// (idempotent-reject) para preservar la integridad de auditoría.
package revocation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

var (
	ErrAlreadyRevoked = errors.New("document_already_revoked")
	ErrEmptyReason    = errors.New("revocation_reason_required")
)

type repo interface {
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	RevokeDocument(ctx context.Context, rec *core.RevocationRecord) error
	GetRevocation(ctx context.Context, documentID string) (*core.RevocationRecord, error)
}

type Ledger struct {
	store repo
}

func New(store repo) *Ledger {
	return &Ledger{store: store}
}

// Revoke inserta el registro y flipea el status del documento a REVOKED en
// la misma transacción (lo garantiza el repo). Registro existente → error,
// nunca overwrite silencioso.
func (l *Ledger) Revoke(ctx context.Context, documentID, reason, actorID string) (*core.RevocationRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	doc, err := l.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	rec := &core.RevocationRecord{
		DocumentID:    documentID,
		InstitutionID: doc.InstitutionID,
		Reason:        reason,
		RevokedBy:     actorID,
		RevokedAt:     time.Now().UTC(),
	}
	if err := l.store.RevokeDocument(ctx, rec); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, ErrAlreadyRevoked
		}
		return nil, err
	}

	logger.From(ctx).Info("document revoked",
		logger.DocumentID(documentID),
		logger.InstitutionID(doc.InstitutionID),
		logger.UserID(actorID))
	return rec, nil
}

// FindByDocument busca el registro de revocación SIN mirar el documento:
// debe responder aunque el documento haya sido borrado.
func (l *Ledger) FindByDocument(ctx context.Context, documentID string) (*core.RevocationRecord, error) {
	rec, err := l.store.GetRevocation(ctx, documentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}
