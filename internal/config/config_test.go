package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: dev\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" || c.Server.MetricsAddr != ":9091" {
		t.Fatalf("addrs: %q %q", c.Server.Addr, c.Server.MetricsAddr)
	}
	if c.Log.Level != "info" {
		t.Fatalf("log level: %q", c.Log.Level)
	}
	if c.Files.Backend != "fs" || c.Files.FS.Root == "" {
		t.Fatalf("files: %+v", c.Files)
	}
	if c.Rate.Sign.Limit != 30 || c.Rate.Verify.Limit != 120 {
		t.Fatalf("rate defaults: %+v", c.Rate)
	}
	if c.Security.MaxUploadBytes != 20<<20 {
		t.Fatalf("max upload: %d", c.Security.MaxUploadBytes)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
app:
  env: dev
server:
  addr: ":9999"
storage:
  dsn: "postgres://yaml"
`)
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("DATABASE_DSN", "postgres://env")
	t.Setenv("MASTER_ENCRYPTION_KEY", "clave-por-env")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Addr != ":7777" {
		t.Fatalf("addr: %q", c.Server.Addr)
	}
	if c.Storage.DSN != "postgres://env" {
		t.Fatalf("dsn: %q", c.Storage.DSN)
	}
	if c.Security.MasterEncryptionKey != "clave-por-env" {
		t.Fatalf("master key: %q", c.Security.MasterEncryptionKey)
	}
	if c.Security.MaxUploadBytes != 1048576 {
		t.Fatalf("max upload: %d", c.Security.MaxUploadBytes)
	}
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	path := writeConfig(t, "app:\n  env: prod\n")
	if _, err := Load(path); err == nil {
		t.Fatal("prod sin master key ni admin key aceptado")
	}

	path = writeConfig(t, `
app:
  env: prod
server:
  admin_api_key: "k"
security:
  master_encryption_key: "m"
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("prod con secretos: %v", err)
	}
}

func TestLoad_RejectsInvalidBackends(t *testing.T) {
	path := writeConfig(t, "files:\n  backend: ftp\n")
	if _, err := Load(path); err == nil {
		t.Fatal("files.backend inválido aceptado")
	}

	path = writeConfig(t, "rate:\n  backend: memcached\n")
	if _, err := Load(path); err == nil {
		t.Fatal("rate.backend inválido aceptado")
	}
}

func TestLoad_RejectsInvalidDurations(t *testing.T) {
	path := writeConfig(t, `
rate:
  sign:
    window: "un rato"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("duración inválida aceptada")
	}
}

func TestDur(t *testing.T) {
	t.Parallel()
	if got := Dur("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := Dur("", time.Minute); got != time.Minute {
		t.Fatalf("default: got %v", got)
	}
	if got := Dur("roto", time.Minute); got != time.Minute {
		t.Fatalf("fallback: got %v", got)
	}
}
