package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		MetricsAddr        string   `yaml:"metrics_addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// AdminAPIKey protege los endpoints administrativos (rotación,
		// suspensión, onboarding). Comparación en tiempo constante.
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Files: backend del storage collaborator (archivos de documentos).
	Files struct {
		Backend string `yaml:"backend"` // fs | s3
		FS      struct {
			Root string `yaml:"root"`
		} `yaml:"fs"`
		S3 struct {
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Bucket    string `yaml:"bucket"`
			UseSSL    bool   `yaml:"use_ssl"`
		} `yaml:"s3"`
	} `yaml:"files"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Backend string `yaml:"backend"` // memory | redis
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Sign struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"sign"`
		Verify struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"verify"`
	} `yaml:"rate"`

	Security struct {
		// MasterEncryptionKey cifra las privadas de institución en reposo.
		// base64/hex/raw de 32 bytes. Normalmente viene por env
		// MASTER_ENCRYPTION_KEY, nunca commiteada en el YAML.
		MasterEncryptionKey string `yaml:"master_encryption_key"`
		// MaxUploadBytes limita el tamaño de archivo a firmar/verificar
		// (fail fast en inputs desmedidos).
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	} `yaml:"security"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9091"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Files.Backend == "" {
		c.Files.Backend = "fs"
	}
	if c.Files.FS.Root == "" {
		c.Files.FS.Root = "./data/files"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Sign.Limit == 0 {
		c.Rate.Sign.Limit = 30
	}
	if c.Rate.Sign.Window == "" {
		c.Rate.Sign.Window = "1m"
	}
	if c.Rate.Verify.Limit == 0 {
		c.Rate.Verify.Limit = 120
	}
	if c.Rate.Verify.Window == "" {
		c.Rate.Verify.Window = "1m"
	}
	if c.Security.MaxUploadBytes == 0 {
		c.Security.MaxUploadBytes = 20 << 20 // 20MB
	}

	// validar duraciones string
	for _, d := range []string{c.Rate.Sign.Window, c.Rate.Verify.Window, c.Storage.Postgres.ConnMaxLifetime} {
		if d != "" {
			if _, err := time.ParseDuration(d); err != nil {
				return nil, fmt.Errorf("config: duración inválida %q: %w", d, err)
			}
		}
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides: el env pisa al YAML (secrets y deploy-specific).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Server.AdminAPIKey = v
	}
	if v, ok := getEnvStr("DATABASE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("MASTER_ENCRYPTION_KEY"); ok {
		c.Security.MasterEncryptionKey = v
	}
	if v, ok := getEnvStr("FILES_BACKEND"); ok {
		c.Files.Backend = v
	}
	if v, ok := getEnvStr("FILES_FS_ROOT"); ok {
		c.Files.FS.Root = v
	}
	if v, ok := getEnvStr("S3_ENDPOINT"); ok {
		c.Files.S3.Endpoint = v
	}
	if v, ok := getEnvStr("S3_ACCESS_KEY"); ok {
		c.Files.S3.AccessKey = v
	}
	if v, ok := getEnvStr("S3_SECRET_KEY"); ok {
		c.Files.S3.SecretKey = v
	}
	if v, ok := getEnvStr("S3_BUCKET"); ok {
		c.Files.S3.Bucket = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("MAX_UPLOAD_BYTES"); ok {
		c.Security.MaxUploadBytes = int64(v)
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
}

func (c *Config) validate() error {
	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.Security.MasterEncryptionKey) == "" {
			return fmt.Errorf("config: master_encryption_key requerida en prod")
		}
		if strings.TrimSpace(c.Server.AdminAPIKey) == "" {
			return fmt.Errorf("config: admin_api_key requerida en prod")
		}
	}
	switch c.Files.Backend {
	case "fs", "s3":
	default:
		return fmt.Errorf("config: files.backend inválido %q (fs|s3)", c.Files.Backend)
	}
	switch c.Rate.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: rate.backend inválido %q (memory|redis)", c.Rate.Backend)
	}
	return nil
}

// Dur parsea una duración string ya validada por Load.
func Dur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}
