package keyring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/keyvault"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
	"github.com/MiserableTaco/academic-backend/internal/store/memory"
)

func newTestKeyring(t *testing.T) (*Keyring, *memory.Store) {
	t.Helper()
	master := make([]byte, 32)
	for i := range master {
		master[i] = byte(i * 3)
	}
	v, err := keyvault.New(master)
	if err != nil {
		t.Fatal(err)
	}
	st := memory.New()
	return New(st, v), st
}

func TestOnboard_CreatesVersionOne(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	inst, err := kr.OnboardInstitution(ctx, "uni-1", "Universidad Uno", "uni1.edu")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if inst.CurrentKeyVersion != 1 {
		t.Fatalf("current: got %d want 1", inst.CurrentKeyVersion)
	}

	kv, err := st.GetKeyVersion(ctx, "uni-1", 1)
	if err != nil {
		t.Fatalf("historial sin v1: %v", err)
	}
	if kv.PublicKeyPEM != inst.PublicKeyPEM {
		t.Fatal("pública de la institución no coincide con la entrada v1")
	}
	if kv.EncryptedPrivateKey == "" {
		t.Fatal("privada cifrada vacía")
	}
	// la privada jamás se guarda en claro
	if len(kv.EncryptedPrivateKey) > 0 && kv.EncryptedPrivateKey[:5] == "-----" {
		t.Fatal("privada persistida en claro")
	}
}

func TestRotate_OldVersionsStillResolve(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	if _, err := kr.OnboardInstitution(ctx, "uni-1", "Uni", "uni.edu"); err != nil {
		t.Fatal(err)
	}
	v2, err := kr.Rotate(ctx, "uni-1")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("versión nueva: got %d want 2", v2)
	}

	inst, _ := st.GetInstitution(ctx, "uni-1")
	if inst.CurrentKeyVersion != 2 {
		t.Fatalf("current no bumpeó: %d", inst.CurrentKeyVersion)
	}

	// la entrada vieja sigue resolviendo para documentos firmados bajo v1
	pub1, err := kr.ResolvePublicKey(ctx, inst, 1, time.Now())
	if err != nil {
		t.Fatalf("resolve v1 post-rotación: %v", err)
	}
	pub2, err := kr.ResolvePublicKey(ctx, inst, 2, time.Now())
	if err != nil {
		t.Fatalf("resolve v2: %v", err)
	}
	if pub1.N.Cmp(pub2.N) == 0 {
		t.Fatal("rotación reutilizó el mismo par")
	}
}

func TestResolve_MissingVersionFailsClosed(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	if _, err := kr.OnboardInstitution(ctx, "uni-1", "Uni", "uni.edu"); err != nil {
		t.Fatal(err)
	}
	inst, _ := st.GetInstitution(ctx, "uni-1")

	if _, err := kr.ResolvePublicKey(ctx, inst, 99, time.Now()); !errors.Is(err, ErrKeyVersionNotFound) {
		t.Fatalf("got %v, want ErrKeyVersionNotFound", err)
	}
}

func TestResolve_CurrentVersionMissingIsInvariantViolation(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	if _, err := kr.OnboardInstitution(ctx, "uni-1", "Uni", "uni.edu"); err != nil {
		t.Fatal(err)
	}
	inst, _ := st.GetInstitution(ctx, "uni-1")
	inst.CurrentKeyVersion = 7 // estado corrupto simulado

	_, err := kr.ResolvePublicKey(ctx, inst, 7, time.Now())
	if !errors.Is(err, core.ErrInvariant) {
		t.Fatalf("got %v, want core.ErrInvariant", err)
	}
}

func TestRevokeKeyVersion_WindowSemantics(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	if _, err := kr.OnboardInstitution(ctx, "uni-1", "Uni", "uni.edu"); err != nil {
		t.Fatal(err)
	}
	inst, _ := st.GetInstitution(ctx, "uni-1")

	if err := kr.RevokeKeyVersion(ctx, "uni-1", 1); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// emitido antes de la marca: sigue verificable
	if _, err := kr.ResolvePublicKey(ctx, inst, 1, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("doc pre-compromiso: %v", err)
	}
	// emitido después: fail closed
	if _, err := kr.ResolvePublicKey(ctx, inst, 1, time.Now().Add(time.Hour)); !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("doc post-compromiso: got %v, want ErrKeyRevoked", err)
	}
}

func TestCurrentSigningKey_IncludesEnvelope(t *testing.T) {
	kr, st := newTestKeyring(t)
	ctx := context.Background()

	if _, err := kr.OnboardInstitution(ctx, "uni-1", "Uni", "uni.edu"); err != nil {
		t.Fatal(err)
	}
	inst, _ := st.GetInstitution(ctx, "uni-1")

	kv, err := kr.CurrentSigningKey(ctx, inst)
	if err != nil {
		t.Fatal(err)
	}
	if kv.Version != inst.CurrentKeyVersion || kv.EncryptedPrivateKey == "" {
		t.Fatalf("entrada vigente incompleta: v%d", kv.Version)
	}
}
