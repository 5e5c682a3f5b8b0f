package core

import (
	"context"
)

// Repository es el contrato de persistencia del core. Las implementaciones
// (pg, memory) garantizan atomicidad en las operaciones compuestas
// (AppendKeyVersion, RevokeDocument): o se escribe todo o no se escribe nada.
type Repository interface {
	Ping(ctx context.Context) error

	// Institutions
	CreateInstitution(ctx context.Context, inst *Institution, first *KeyVersion) error
	GetInstitution(ctx context.Context, id string) (*Institution, error)
	SetInstitutionStatus(ctx context.Context, id string, status InstitutionStatus) error

	// Key history (append-only). AppendKeyVersion inserta la entrada y
	// actualiza current_key_version + public key vigente en la misma tx.
	AppendKeyVersion(ctx context.Context, kv *KeyVersion) error
	GetKeyVersion(ctx context.Context, institutionID string, version int) (*KeyVersion, error)
	ListKeyVersions(ctx context.Context, institutionID string) ([]KeyVersion, error)
	// MarkKeyVersionRevoked setea revoked_at (único campo mutable del
	// historial; se usa ante compromiso de clave).
	MarkKeyVersionRevoked(ctx context.Context, institutionID string, version int) error

	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	// Documents
	CreateDocument(ctx context.Context, d *Document) error
	// CreateDocumentSuperseding inserta d y marca prevID como SUPERSEDED en
	// la misma tx: el destinatario nunca queda sin documento vigente por un
	// insert fallido a mitad de camino.
	CreateDocumentSuperseding(ctx context.Context, d *Document, prevID string) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	SetDocumentStatus(ctx context.Context, id string, status DocumentStatus) error
	// FindActiveDocument busca el documento ACTIVE del mismo tipo para el
	// mismo destinatario (candidato a supersession en re-emisión).
	FindActiveDocument(ctx context.Context, institutionID, recipientID, docType string) (*Document, error)
	// DeleteDocument es un override administrativo; NO borra el registro de
	// revocación (el ledger sobrevive al documento).
	DeleteDocument(ctx context.Context, id string) error

	// Revocations. RevokeDocument inserta el registro y flipea el status del
	// documento a REVOKED en la misma tx; ErrConflict si ya había registro.
	RevokeDocument(ctx context.Context, rec *RevocationRecord) error
	GetRevocation(ctx context.Context, documentID string) (*RevocationRecord, error)
}
