package keyvault

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const rootKeyBits = 4096

// GenerateRootKeyPair genera un par RSA-4096 para una institución.
// Público en SPKI/PEM, privado en PKCS8/PEM. Sin side effects: quien llama
// decide persistencia (el privado debería pasar por EncryptPrivateKey antes
// de tocar disco).
func GenerateRootKeyPair() (publicKeyPEM, privateKeyPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rootKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("rsa generate: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal pkcs8: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal spki: %w", err)
	}

	priv := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(pub), string(priv), nil
}

// ParsePrivateKey decodifica una clave privada PKCS8/PEM a *rsa.PrivateKey.
func ParsePrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("pem inválido (private key)")
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse pkcs8: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("la clave privada no es RSA")
	}
	return rk, nil
}

// ParsePublicKey decodifica una clave pública SPKI/PEM a *rsa.PublicKey.
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("pem inválido (public key)")
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse spki: %w", err)
	}
	rk, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("la clave pública no es RSA")
	}
	return rk, nil
}
