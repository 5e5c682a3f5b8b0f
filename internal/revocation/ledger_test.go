package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
	"github.com/MiserableTaco/academic-backend/internal/store/memory"
)

func seedDocument(t *testing.T, st *memory.Store, id string) {
	t.Helper()
	err := st.CreateDocument(context.Background(), &core.Document{
		ID: id, InstitutionID: "uni-1", RecipientID: "student-1",
		Type: "diploma", Status: core.DocumentActive, IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRevoke_FlipsStatusAndRecords(t *testing.T) {
	t.Parallel()
	st := memory.New()
	l := New(st)
	ctx := context.Background()
	seedDocument(t, st, "doc-1")

	rec, err := l.Revoke(ctx, "doc-1", "promedio adulterado", "admin-1")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rec.Reason != "promedio adulterado" || rec.RevokedBy != "admin-1" || rec.InstitutionID != "uni-1" {
		t.Fatalf("registro incompleto: %+v", rec)
	}

	doc, _ := st.GetDocument(ctx, "doc-1")
	if doc.Status != core.DocumentRevoked {
		t.Fatalf("status: got %s want REVOKED", doc.Status)
	}
}

func TestRevoke_SecondAttemptRejected(t *testing.T) {
	t.Parallel()
	st := memory.New()
	l := New(st)
	ctx := context.Background()
	seedDocument(t, st, "doc-1")

	if _, err := l.Revoke(ctx, "doc-1", "razón original", "admin-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Revoke(ctx, "doc-1", "otra razón", "admin-2"); !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("got %v, want ErrAlreadyRevoked", err)
	}

	// el registro original queda intacto: nada de overwrite silencioso
	rec, err := st.GetRevocation(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Reason != "razón original" || rec.RevokedBy != "admin-1" {
		t.Fatalf("registro pisado: %+v", rec)
	}
}

func TestRevoke_RequiresReason(t *testing.T) {
	t.Parallel()
	st := memory.New()
	l := New(st)
	seedDocument(t, st, "doc-1")

	if _, err := l.Revoke(context.Background(), "doc-1", "   ", "admin-1"); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("got %v, want ErrEmptyReason", err)
	}
}

func TestRevoke_UnknownDocument(t *testing.T) {
	t.Parallel()
	l := New(memory.New())
	if _, err := l.Revoke(context.Background(), "no-existe", "x", "admin-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want core.ErrNotFound", err)
	}
}

func TestFindByDocument_SurvivesDeletion(t *testing.T) {
	t.Parallel()
	st := memory.New()
	l := New(st)
	ctx := context.Background()
	seedDocument(t, st, "doc-1")

	if _, err := l.Revoke(ctx, "doc-1", "apócrifo", "admin-1"); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}

	rec, err := l.FindByDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Reason != "apócrifo" {
		t.Fatalf("registro perdido tras borrar el documento: %+v", rec)
	}

	// id jamás revocado: (nil, nil)
	rec, err = l.FindByDocument(ctx, "nunca-revocado")
	if err != nil || rec != nil {
		t.Fatalf("got rec=%+v err=%v, want nil/nil", rec, err)
	}
}
