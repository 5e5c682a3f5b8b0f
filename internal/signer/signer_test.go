package signer

import (
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/MiserableTaco/academic-backend/internal/keyvault"
)

// Par RSA compartido entre tests: generar 4096 bits es caro y ninguna prueba
// muta el par.
var (
	fixtureOnce sync.Once
	fixturePub  string
	fixtureEnv  string
	fixtureV    *keyvault.Vault
)

func fixture(t *testing.T) (*Signer, string) {
	t.Helper()
	fixtureOnce.Do(func() {
		master := make([]byte, 32)
		for i := range master {
			master[i] = byte(i)
		}
		v, err := keyvault.New(master)
		if err != nil {
			panic(err)
		}
		pub, priv, err := keyvault.GenerateRootKeyPair()
		if err != nil {
			panic(err)
		}
		env, err := v.EncryptPrivateKey(priv)
		if err != nil {
			panic(err)
		}
		fixtureV, fixturePub, fixtureEnv = v, pub, env
	})
	return New(fixtureV), fixturePub
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s, pubPEM := fixture(t)
	file := []byte("acta de título: Ana Pérez, Ingeniería, 2026")

	sigB64, hashHex, err := s.Sign(file, fixtureEnv)
	if err != nil {
		t.Fatalf("Sign err: %v", err)
	}
	if hashHex != HashDocument(file) {
		t.Fatalf("hash mismatch: got %s want %s", hashHex, HashDocument(file))
	}

	pub, err := keyvault.ParsePublicKey(pubPEM)
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256(file)
	if err := VerifySignature(pub, digest, sigB64); err != nil {
		t.Fatalf("VerifySignature err: %v", err)
	}
}

func TestVerify_RejectsModifiedContent(t *testing.T) {
	s, pubPEM := fixture(t)
	file := []byte("contenido original")

	sigB64, _, err := s.Sign(file, fixtureEnv)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte{}, file...)
	tampered[0] ^= 0x01
	pub, _ := keyvault.ParsePublicKey(pubPEM)
	digest := sha256.Sum256(tampered)
	if err := VerifySignature(pub, digest, sigB64); err == nil {
		t.Fatal("firma aceptada sobre contenido modificado")
	}
}

// PSS es aleatorizado: dos firmas del mismo archivo difieren pero ambas
// verifican. Jamás comparar firmas por igualdad de bytes.
func TestSign_NonDeterministicButBothVerify(t *testing.T) {
	s, pubPEM := fixture(t)
	file := []byte("mismo archivo, dos firmas")

	sig1, _, err := s.Sign(file, fixtureEnv)
	if err != nil {
		t.Fatal(err)
	}
	sig2, _, err := s.Sign(file, fixtureEnv)
	if err != nil {
		t.Fatal(err)
	}
	if sig1 == sig2 {
		t.Fatal("dos firmas PSS idénticas")
	}

	pub, _ := keyvault.ParsePublicKey(pubPEM)
	digest := sha256.Sum256(file)
	for _, sig := range []string{sig1, sig2} {
		if err := VerifySignature(pub, digest, sig); err != nil {
			t.Fatalf("firma no verifica: %v", err)
		}
	}
}

func TestSign_BadEnvelope(t *testing.T) {
	s, _ := fixture(t)
	if _, _, err := s.Sign([]byte("x"), "no:es:envelope"); err == nil {
		t.Fatal("expected error con envelope roto")
	}
}

func TestHashDocument_KnownVector(t *testing.T) {
	t.Parallel()
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashDocument([]byte("abc")); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestVerifySignature_BadBase64(t *testing.T) {
	_, pubPEM := fixture(t)
	pub, _ := keyvault.ParsePublicKey(pubPEM)
	digest := sha256.Sum256([]byte("x"))
	if err := VerifySignature(pub, digest, "%%%no-base64%%%"); err == nil {
		t.Fatal("expected error con base64 inválido")
	}
}
