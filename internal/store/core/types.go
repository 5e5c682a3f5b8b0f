package core

import "time"

// ───────────────────────── Institution ─────────────────────────

type InstitutionStatus string

const (
	InstitutionActive    InstitutionStatus = "ACTIVE"
	InstitutionSuspended InstitutionStatus = "SUSPENDED"
)

// Institution emite documentos firmados con su root key pair.
// La clave privada vigente vive SOLO cifrada (envelope del keyvault);
// el plaintext existe de forma transitoria en memoria durante la firma.
type Institution struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	EmailDomain       string            `json:"email_domain"`
	Status            InstitutionStatus `json:"status"`
	CurrentKeyVersion int               `json:"current_key_version"`
	// PublicKeyPEM es copia de la entrada vigente del historial (invariante:
	// current_key_version siempre existe como fila en institution_keys).
	PublicKeyPEM string    `json:"public_key_pem"`
	CreatedAt    time.Time `json:"created_at"`
}

// KeyVersion es una entrada del historial append-only de claves de una
// institución. Nunca se muta in-place una vez escrita (solo se setea
// revoked_at ante compromiso de clave); de eso depende la verificación
// retroactiva de documentos viejos.
type KeyVersion struct {
	InstitutionID       string     `json:"institution_id"`
	Version             int        `json:"version"`
	PublicKeyPEM        string     `json:"public_key_pem"`
	EncryptedPrivateKey string     `json:"-"` // envelope iv:tag:ct, jamás en respuestas
	CreatedAt           time.Time  `json:"created_at"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty"`
}

// ───────────────────────── User ─────────────────────────

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleIssuer  Role = "ISSUER"
	RoleAdmin   Role = "ADMIN"
)

// User: emisor, alumno o admin. La ventana de autorización de un ISSUER
// es [WhitelistedAt, RevokedAt): documentos emitidos fuera de la ventana
// fallan la verificación de autoridad aunque la firma sea válida.
type User struct {
	ID            string     `json:"id"`
	InstitutionID string     `json:"institution_id"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	Verified      bool       `json:"verified"`
	WhitelistedAt *time.Time `json:"whitelisted_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ───────────────────────── Document ─────────────────────────

type DocumentStatus string

const (
	DocumentActive     DocumentStatus = "ACTIVE"
	DocumentRevoked    DocumentStatus = "REVOKED"    // terminal
	DocumentSuperseded DocumentStatus = "SUPERSEDED" // terminal
)

// SignatureMetadata es el bundle de firma de un documento. Campos tipados
// y siempre presentes: la corrección del verificador depende de hash,
// signature y key_version — nada de JSON dinámico acá.
type SignatureMetadata struct {
	HashHex      string `json:"hash_hex"`      // SHA-256 del archivo, hex
	SignatureB64 string `json:"signature_b64"` // firma detached, base64
	Algorithm    string `json:"algorithm"`     // tag estable, ej. RSA-PSS-SHA256
	KeyVersion   int    `json:"key_version"`
	IssuerID     string `json:"issuer_id"`
	IssuerEmail  string `json:"issuer_email"`
	FileRef      string `json:"file_ref"` // referencia opaca del storage collaborator
}

type Document struct {
	ID            string            `json:"id"`
	InstitutionID string            `json:"institution_id"`
	RecipientID   string            `json:"recipient_id"`
	Type          string            `json:"type"`
	Status        DocumentStatus    `json:"status"`
	IssuedAt      time.Time         `json:"issued_at"`
	Metadata      SignatureMetadata `json:"metadata"`
}

// ───────────────────────── Revocation ─────────────────────────

// RevocationRecord pertenece a la institución, no al documento: sobrevive
// al borrado físico del documento para que un verificador pueda seguir
// respondiendo "fue revocado, por esto" en vez de "not found".
type RevocationRecord struct {
	DocumentID    string    `json:"document_id"`
	InstitutionID string    `json:"institution_id"`
	Reason        string    `json:"reason"`
	RevokedBy     string    `json:"revoked_by"` // user id del actor
	RevokedAt     time.Time `json:"revoked_at"`
}
