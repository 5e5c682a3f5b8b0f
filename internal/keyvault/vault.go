// Package keyvault cifra y descifra las claves privadas raíz de las
// instituciones en reposo, y genera los pares de claves.
//
// El master key es configuración inyectada al construir el Vault (nunca un
// global ambiente): cada test puede usar un secreto descartable propio.
// Formato del envelope: iv:tag:ciphertext, los tres campos en hex.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	ivSize      = 16 // IV aleatorio por llamada, nunca reutilizado
	tagSize     = 16 // GCM auth tag
	derivedSize = 32 // AES-256

	// Parámetros scrypt. El salt es fijo y no-secreto: la KDF acá no protege
	// passwords de usuarios sino que estira un secreto de proceso; lo que
	// importa es que derivar sea caro, no que el salt sea único.
	scryptN    = 1 << 15
	scryptR    = 8
	scryptP    = 1
	scryptSalt = "academic-backend.root-key.v1"
)

var (
	// ErrInvalidEnvelope: formato roto (campos != 3, hex inválido, IV corto).
	ErrInvalidEnvelope = errors.New("invalid_key_envelope")
	// ErrDecryptFailed: falla de autenticación/descifrado. Nunca devolvemos
	// plaintext parcial; el mensaje es genérico a propósito (sin oráculo).
	ErrDecryptFailed = errors.New("key_decrypt_failed")
)

// Vault deriva una clave simétrica del master secret y cifra/descifra
// claves privadas PEM. Read-only después de construido; seguro para uso
// concurrente.
type Vault struct {
	derived []byte
}

// New deriva la clave simétrica una sola vez (scrypt es caro; no queremos
// pagarlo por operación). master debe tener 32 bytes.
func New(master []byte) (*Vault, error) {
	if len(master) != derivedSize {
		return nil, fmt.Errorf("master key: se requieren %d bytes, hay %d", derivedSize, len(master))
	}
	dk, err := scrypt.Key(master, []byte(scryptSalt), scryptN, scryptR, scryptP, derivedSize)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return &Vault{derived: dk}, nil
}

// EncryptPrivateKey cifra una clave privada PEM y devuelve el envelope
// iv:tag:ct en hex. IV fresco de crypto/rand en cada llamada.
func (v *Vault) EncryptPrivateKey(privateKeyPEM string) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("iv random: %w", err)
	}

	// Seal devuelve ct||tag; el envelope lleva el tag como campo propio.
	sealed := aead.Seal(nil, iv, []byte(privateKeyPEM), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// DecryptPrivateKey abre un envelope iv:tag:ct. Fail closed: ante cualquier
// falla de autenticación se devuelve ErrDecryptFailed, jamás bytes a medias.
func (v *Vault) DecryptPrivateKey(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrInvalidEnvelope
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrInvalidEnvelope
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrInvalidEnvelope
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidEnvelope
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(pt), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.derived)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	// GCM con nonce de 16 bytes para que el IV del envelope entre entero.
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

// ParseMasterKey acepta el secreto de proceso en base64, hex o raw 32 bytes
// (mismo criterio tolerante que usamos para otras claves de config).
func ParseMasterKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("master key vacía")
	}
	if b, err := decodeB64(s); err == nil && len(b) == derivedSize {
		return b, nil
	}
	if len(s) == derivedSize*2 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if len(s) == derivedSize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("master key inválida: se esperan %d bytes (base64/hex/raw)", derivedSize)
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
