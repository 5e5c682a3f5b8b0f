// Package signer computa el hash de contenido de un documento y produce la
// firma detached bajo la clave de una institución.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/MiserableTaco/academic-backend/internal/keyvault"
)

// Algorithm es el identificador estable que se persiste en la metadata de
// cada documento. Si algún día cambia el esquema, cada documento sigue
// siendo autodescriptivo.
const Algorithm = "RSA-PSS-SHA256"

// PSS con salt = largo del digest. PSS es aleatorizado: dos firmas del mismo
// archivo difieren, lo que elimina la reutilización de firmas como vector de
// fingerprinting. Los tests verifican re-verificando, nunca por igualdad de
// bytes contra un fixture.
var pssOpts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

// Signer firma documentos descifrando la clave de la institución vía el
// vault. El plaintext de la privada vive solo dentro de Sign.
type Signer struct {
	vault *keyvault.Vault
}

func New(v *keyvault.Vault) *Signer {
	return &Signer{vault: v}
}

// HashDocument computa SHA-256 sobre los bytes EXACTOS del archivo (nunca
// sobre una re-serialización: en verificación se re-hashean los mismos bytes).
func HashDocument(fileBytes []byte) string {
	sum := sha256.Sum256(fileBytes)
	return hex.EncodeToString(sum[:])
}

// Sign firma fileBytes con la privada cifrada de la institución.
// Devuelve (firma base64, hash hex). El hash es determinístico; la firma no.
func (s *Signer) Sign(fileBytes []byte, encryptedPrivateKey string) (signatureB64, hashHex string, err error) {
	privPEM, err := s.vault.DecryptPrivateKey(encryptedPrivateKey)
	if err != nil {
		return "", "", fmt.Errorf("decrypt institution key: %w", err)
	}
	priv, err := keyvault.ParsePrivateKey(privPEM)
	if err != nil {
		return "", "", err
	}

	digest := sha256.Sum256(fileBytes)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], pssOpts)
	if err != nil {
		return "", "", fmt.Errorf("sign pss: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), hex.EncodeToString(digest[:]), nil
}

// VerifySignature chequea una firma detached contra un digest ya computado.
func VerifySignature(pub *rsa.PublicKey, digest [sha256.Size]byte, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("signature base64: %w", err)
	}
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, pssOpts)
}
