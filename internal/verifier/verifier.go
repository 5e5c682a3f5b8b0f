// Package verifier orquesta el protocolo de verificación completo sobre un
// documento: chequeo criptográfico, validez de la autoridad emisora,
// ventana de autorización del emisor y estado de revocación/supersession.
//
// Contrato de salida: SIEMPRE un resultado estructurado. "El documento es
// inválido" es un outcome esperado de primera clase, no un error; solo las
// fallas de infraestructura (store caído, archivo ilegible) salen como error,
// para que el caller distinga "no pudimos chequear" de "chequeamos y es trucho".
package verifier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/signer"
	"github.com/MiserableTaco/academic-backend/internal/storage"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// ErrSourceUnavailable: el registro existe pero no pudimos leer el archivo
// almacenado. Falla de infraestructura, NO un verdict de invalidez.
var ErrSourceUnavailable = errors.New("stored_file_unavailable")

// Códigos de falla por chequeo (machine-readable, van en el resultado).
const (
	ReasonHashMismatch        = "hash_mismatch"
	ReasonBadSignature        = "bad_signature"
	ReasonKeyVersionNotFound  = "key_version_not_found"
	ReasonKeyVersionRevoked   = "key_version_revoked"
	ReasonInstitutionMissing  = "institution_not_found"
	ReasonInstitutionInactive = "institution_suspended"
	ReasonIssuerUnknown       = "issuer_not_found"
	ReasonIssuerOutsideWindow = "issuer_outside_authorization_window"
	ReasonRevoked             = "document_revoked"
	ReasonSuperseded          = "document_superseded"
)

// Checks reporta cada chequeo por separado: los consumidores de la API
// necesitan explicar POR QUÉ falló, no solo que falló.
type Checks struct {
	SignatureValid bool `json:"signature_valid"`
	AuthorityValid bool `json:"authority_valid"`
	NotRevoked     bool `json:"not_revoked"`
}

// RevocationDetail acompaña los verdicts terminales por revocación.
type RevocationDetail struct {
	Reason    string    `json:"reason"`
	RevokedBy string    `json:"revoked_by"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Result es el verdict completo. Status distingue "nunca fue válido"
// (ACTIVE + checks en false) de "fue válido pero revocado/reemplazado":
// señales de confianza materialmente distintas para quien consulta.
type Result struct {
	DocumentID string              `json:"document_id"`
	Valid      bool                `json:"valid"`
	Status     core.DocumentStatus `json:"status"`
	Checks     Checks              `json:"checks"`
	// Failures lista los códigos de los chequeos que fallaron (vacío si Valid).
	Failures   []string          `json:"failures,omitempty"`
	Revocation *RevocationDetail `json:"revocation,omitempty"`
	Document   *DocumentInfo     `json:"document,omitempty"`
}

type repo interface {
	GetInstitution(ctx context.Context, id string) (*core.Institution, error)
	GetUser(ctx context.Context, id string) (*core.User, error)
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	GetRevocation(ctx context.Context, documentID string) (*core.RevocationRecord, error)
}

type Verifier struct {
	store   repo
	keyring *keyring.Keyring
	files   storage.Store
}

func New(store repo, kr *keyring.Keyring, files storage.Store) *Verifier {
	return &Verifier{store: store, keyring: kr, files: files}
}

// Verify evalúa el documento contra fileBytes. Si fileBytes es nil se leen
// los bytes almacenados vía el storage collaborator (verificación del
// ejemplar guardado en vez de uno aportado por el caller).
//
// Errores devueltos: core.ErrNotFound (documento inexistente y sin registro
// de revocación), ErrSourceUnavailable, o fallas de store. Todo lo demás es
// un Result.
func (v *Verifier) Verify(ctx context.Context, documentID string, fileBytes []byte) (*Result, error) {
	res := &Result{DocumentID: documentID}

	doc, err := v.store.GetDocument(ctx, documentID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("load document: %w", err)
		}
		// El ledger de revocación es independiente de la existencia del
		// documento: un id borrado pero revocado responde "revocado", no 404.
		rec, rerr := v.store.GetRevocation(ctx, documentID)
		if rerr != nil {
			if errors.Is(rerr, core.ErrNotFound) {
				return nil, core.ErrNotFound
			}
			return nil, fmt.Errorf("load revocation: %w", rerr)
		}
		res.Status = core.DocumentRevoked
		res.Failures = append(res.Failures, ReasonRevoked)
		res.Revocation = revocationDetail(rec)
		return res, nil
	}

	res.Status = doc.Status
	res.Document = publicDocumentInfo(doc)

	// Estados terminales cortan acá, con el detalle de revocación si existe.
	switch doc.Status {
	case core.DocumentRevoked:
		res.Failures = append(res.Failures, ReasonRevoked)
		rec, rerr := v.store.GetRevocation(ctx, documentID)
		switch {
		case rerr == nil:
			res.Revocation = revocationDetail(rec)
		case errors.Is(rerr, core.ErrNotFound):
			// REVOKED sin registro en el ledger: invariante roto. El verdict
			// terminal sale igual, sin detalle, pero queda loggeado.
			logger.From(ctx).Error("documento REVOKED sin registro en el ledger",
				logger.DocumentID(documentID), logger.InstitutionID(doc.InstitutionID))
		default:
			return nil, fmt.Errorf("load revocation: %w", rerr)
		}
		return res, nil
	case core.DocumentSuperseded:
		res.Failures = append(res.Failures, ReasonSuperseded)
		return res, nil
	}

	// Double-check defensivo: registro en el ledger con status todavía
	// ACTIVE es una violación de invariante. Loud + fail closed.
	rec, rerr := v.store.GetRevocation(ctx, documentID)
	if rerr != nil && !errors.Is(rerr, core.ErrNotFound) {
		return nil, fmt.Errorf("load revocation: %w", rerr)
	}
	if rec != nil {
		logger.From(ctx).Error("revocation record presente con documento ACTIVE",
			logger.DocumentID(documentID), logger.InstitutionID(doc.InstitutionID))
		res.Status = core.DocumentRevoked
		res.Failures = append(res.Failures, ReasonRevoked)
		res.Revocation = revocationDetail(rec)
		return res, nil
	}
	res.Checks.NotRevoked = true

	// Una sola lectura de la institución para ambos chequeos. Un fallo de
	// store acá es "no pudimos chequear", jamás un verdict de invalidez.
	inst, err := v.store.GetInstitution(ctx, doc.InstitutionID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("load institution: %w", err)
		}
		// Documento que referencia una institución inexistente: invariante
		// roto. Fail closed en ambos chequeos.
		logger.From(ctx).Error("documento referencia institución inexistente",
			logger.DocumentID(doc.ID), logger.InstitutionID(doc.InstitutionID))
		res.Failures = append(res.Failures, ReasonInstitutionMissing)
		return res, nil
	}

	if fileBytes == nil {
		fileBytes, err = v.files.ReadFile(ctx, doc.Metadata.FileRef)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, doc.Metadata.FileRef)
		}
	}

	if err := v.checkSignature(ctx, inst, doc, fileBytes, res); err != nil {
		return nil, err
	}
	if err := v.checkAuthority(ctx, inst, doc, res); err != nil {
		return nil, err
	}

	res.Valid = res.Checks.SignatureValid && res.Checks.AuthorityValid && res.Checks.NotRevoked
	return res, nil
}

// checkSignature: resolver clave histórica → comparar hash → verificar PSS.
// El mismatch de hash rechaza ANTES de tocar RSA (detección de tampering o
// archivo equivocado, independiente de la matemática de firma).
//
// Devuelve error solo ante fallas de infraestructura del keyring; los
// resultados criptográficos van siempre al Result.
func (v *Verifier) checkSignature(ctx context.Context, inst *core.Institution, doc *core.Document, fileBytes []byte, res *Result) error {
	pub, err := v.keyring.ResolvePublicKey(ctx, inst, doc.Metadata.KeyVersion, doc.IssuedAt)
	if err != nil {
		switch {
		case errors.Is(err, keyring.ErrKeyVersionNotFound):
			res.Failures = append(res.Failures, ReasonKeyVersionNotFound)
		case errors.Is(err, keyring.ErrKeyRevoked):
			res.Failures = append(res.Failures, ReasonKeyVersionRevoked)
		case errors.Is(err, core.ErrInvariant):
			logger.From(ctx).Error("resolución de clave pública falló",
				logger.DocumentID(doc.ID), logger.KeyVersion(doc.Metadata.KeyVersion), logger.Err(err))
			res.Failures = append(res.Failures, ReasonKeyVersionNotFound)
		default:
			return fmt.Errorf("resolve public key: %w", err)
		}
		return nil
	}

	digest := sha256.Sum256(fileBytes)
	stored, err := hex.DecodeString(doc.Metadata.HashHex)
	if err != nil || !bytes.Equal(digest[:], stored) {
		res.Failures = append(res.Failures, ReasonHashMismatch)
		return nil
	}

	if err := signer.VerifySignature(pub, digest, doc.Metadata.SignatureB64); err != nil {
		res.Failures = append(res.Failures, ReasonBadSignature)
		return nil
	}
	res.Checks.SignatureValid = true
	return nil
}

// checkAuthority: institución ACTIVE + el emisor registrado existía,
// pertenecía a la institución y emitió dentro de [whitelistedAt, revokedAt).
func (v *Verifier) checkAuthority(ctx context.Context, inst *core.Institution, doc *core.Document, res *Result) error {
	if inst.Status != core.InstitutionActive {
		res.Failures = append(res.Failures, ReasonInstitutionInactive)
		return nil
	}

	issuer, err := v.store.GetUser(ctx, doc.Metadata.IssuerID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("load issuer: %w", err)
		}
		res.Failures = append(res.Failures, ReasonIssuerUnknown)
		return nil
	}
	if issuer.InstitutionID != doc.InstitutionID || !issuerAuthorizedAt(issuer, doc.IssuedAt) {
		res.Failures = append(res.Failures, ReasonIssuerOutsideWindow)
		return nil
	}
	res.Checks.AuthorityValid = true
	return nil
}

// issuerAuthorizedAt: ventana semiabierta [whitelistedAt, revokedAt).
func issuerAuthorizedAt(u *core.User, at time.Time) bool {
	if u.WhitelistedAt == nil || at.Before(*u.WhitelistedAt) {
		return false
	}
	if u.RevokedAt != nil && !at.Before(*u.RevokedAt) {
		return false
	}
	return true
}

func revocationDetail(rec *core.RevocationRecord) *RevocationDetail {
	if rec == nil {
		return nil
	}
	return &RevocationDetail{Reason: rec.Reason, RevokedBy: rec.RevokedBy, RevokedAt: rec.RevokedAt}
}
