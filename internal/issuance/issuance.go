// Package issuance orquesta la emisión: guardar el archivo, firmarlo bajo
// la clave vigente de la institución y persistir el documento con su
// metadata de firma. Si ya existía un documento ACTIVE del mismo tipo para
// el mismo destinatario, queda SUPERSEDED (reemplazo sin implicar falta,
// a diferencia de la revocación).
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/signer"
	"github.com/MiserableTaco/academic-backend/internal/storage"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

var (
	ErrEmptyFile            = errors.New("empty_file")
	ErrInstitutionSuspended = errors.New("institution_suspended")
	ErrIssuerNotAuthorized  = errors.New("issuer_not_authorized")
	ErrRecipientNotInTenant = errors.New("recipient_outside_institution")
	ErrMissingDocumentType  = errors.New("document_type_required")
)

type repo interface {
	GetInstitution(ctx context.Context, id string) (*core.Institution, error)
	GetUser(ctx context.Context, id string) (*core.User, error)
	CreateDocument(ctx context.Context, d *core.Document) error
	CreateDocumentSuperseding(ctx context.Context, d *core.Document, prevID string) error
	FindActiveDocument(ctx context.Context, institutionID, recipientID, docType string) (*core.Document, error)
}

type Service struct {
	store   repo
	keyring *keyring.Keyring
	signer  *signer.Signer
	files   storage.Store
}

func New(store repo, kr *keyring.Keyring, sg *signer.Signer, files storage.Store) *Service {
	return &Service{store: store, keyring: kr, signer: sg, files: files}
}

// Issue firma fileBytes y crea el documento. La ventana de autorización del
// emisor se chequea acá además de en verificación: no tiene sentido emitir
// algo que va a fallar la verificación de autoridad desde el día cero.
func (s *Service) Issue(ctx context.Context, issuerID, recipientID string, fileBytes []byte, docType string) (*core.Document, error) {
	if len(fileBytes) == 0 {
		return nil, ErrEmptyFile
	}
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return nil, ErrMissingDocumentType
	}

	issuer, err := s.store.GetUser(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("load issuer: %w", err)
	}
	now := time.Now().UTC()
	if !issuerActiveAt(issuer, now) {
		return nil, ErrIssuerNotAuthorized
	}

	inst, err := s.store.GetInstitution(ctx, issuer.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("load institution: %w", err)
	}
	if inst.Status != core.InstitutionActive {
		return nil, ErrInstitutionSuspended
	}

	recipient, err := s.store.GetUser(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	if recipient.InstitutionID != inst.ID {
		return nil, ErrRecipientNotInTenant
	}

	kv, err := s.keyring.CurrentSigningKey(ctx, inst)
	if err != nil {
		return nil, err
	}
	sigB64, hashHex, err := s.signer.Sign(fileBytes, kv.EncryptedPrivateKey)
	if err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	ref := fmt.Sprintf("institutions/%s/documents/%s", inst.ID, docID)
	ref, err = s.files.WriteFile(ctx, ref, fileBytes)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	doc := &core.Document{
		ID:            docID,
		InstitutionID: inst.ID,
		RecipientID:   recipientID,
		Type:          docType,
		Status:        core.DocumentActive,
		IssuedAt:      now,
		Metadata: core.SignatureMetadata{
			HashHex:      hashHex,
			SignatureB64: sigB64,
			Algorithm:    signer.Algorithm,
			KeyVersion:   kv.Version,
			IssuerID:     issuer.ID,
			IssuerEmail:  issuer.Email,
			FileRef:      ref,
		},
	}

	// Supersession del ACTIVE previo del mismo tipo/destinatario, si hay.
	// Alta y flip a SUPERSEDED van en la misma tx del store: un insert
	// fallido no deja al destinatario sin documento vigente.
	prev, perr := s.store.FindActiveDocument(ctx, inst.ID, recipientID, docType)
	switch {
	case perr == nil && prev != nil:
		if err := s.store.CreateDocumentSuperseding(ctx, doc, prev.ID); err != nil {
			return nil, fmt.Errorf("create document superseding %s: %w", prev.ID, err)
		}
		logger.From(ctx).Info("previous document superseded",
			logger.DocumentID(prev.ID), logger.DocType(docType))
	case perr != nil && !errors.Is(perr, core.ErrNotFound):
		return nil, fmt.Errorf("find previous: %w", perr)
	default:
		if err := s.store.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
	}

	logger.From(ctx).Info("document signed",
		logger.DocumentID(docID),
		logger.InstitutionID(inst.ID),
		logger.KeyVersion(kv.Version),
		logger.DocType(docType))
	return doc, nil
}

func issuerActiveAt(u *core.User, at time.Time) bool {
	if u.WhitelistedAt == nil || at.Before(*u.WhitelistedAt) {
		return false
	}
	if u.RevokedAt != nil && !at.Before(*u.RevokedAt) {
		return false
	}
	return true
}
