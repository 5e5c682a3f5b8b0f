package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS guarda archivos en disco local bajo un root. Útil para dev y tests;
// producción usa el backend S3.
type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage fs: root vacío")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage fs: mkdir %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

func (f *FS) WriteFile(_ context.Context, ref string, data []byte) (string, error) {
	path, err := f.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := atomicWrite(path, data, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}

func (f *FS) ReadFile(_ context.Context, ref string) ([]byte, error) {
	path, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// resolve corta path traversal: la ref limpia tiene que quedar bajo root.
func (f *FS) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	path := filepath.Join(f.root, clean)
	if !strings.HasPrefix(path, filepath.Clean(f.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage fs: ref inválida %q", ref)
	}
	return path, nil
}

// atomicWrite: tmp → fsync → close → chmod → rename, con fallback
// remove+rename para Windows (preserva el archivo viejo si algo falla).
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}
