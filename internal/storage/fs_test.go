package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFS_WriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("bytes exactos del diploma")
	ref, err := fs.WriteFile(ctx, "institutions/uni-1/documents/doc-1", data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fs.ReadFile(ctx, ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip alteró los bytes")
	}
}

func TestFS_OverwriteKeepsLatest(t *testing.T) {
	t.Parallel()
	fs, _ := NewFS(t.TempDir())
	ctx := context.Background()

	if _, err := fs.WriteFile(ctx, "a/b", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.WriteFile(ctx, "a/b", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, err := fs.ReadFile(ctx, "a/b")
	if err != nil || string(got) != "v2" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestFS_RejectsPathTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	fs, _ := NewFS(root)
	ctx := context.Background()

	// plantar un archivo fuera del root que un traversal intentaría leer
	outside := filepath.Join(filepath.Dir(root), "fuera.txt")
	if err := os.WriteFile(outside, []byte("secreto"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(outside) })

	if b, err := fs.ReadFile(ctx, "../fuera.txt"); err == nil && string(b) == "secreto" {
		t.Fatal("traversal leyó fuera del root")
	}
	if _, err := fs.WriteFile(ctx, "../../escape", []byte("x")); err == nil {
		if _, statErr := os.Stat(filepath.Join(filepath.Dir(root), "..", "escape")); statErr == nil {
			t.Fatal("traversal escribió fuera del root")
		}
	}
}

func TestFS_EmptyRootRejected(t *testing.T) {
	t.Parallel()
	if _, err := NewFS("  "); err == nil {
		t.Fatal("root vacío aceptado")
	}
}
