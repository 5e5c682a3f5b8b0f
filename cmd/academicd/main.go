package main

import (
	"context"
	"crypto/rand"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/MiserableTaco/academic-backend/internal/config"
	httpserver "github.com/MiserableTaco/academic-backend/internal/http"
	"github.com/MiserableTaco/academic-backend/internal/issuance"
	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/keyvault"
	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/rate"
	"github.com/MiserableTaco/academic-backend/internal/revocation"
	"github.com/MiserableTaco/academic-backend/internal/signer"
	"github.com/MiserableTaco/academic-backend/internal/storage"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
	"github.com/MiserableTaco/academic-backend/internal/store/memory"
	"github.com/MiserableTaco/academic-backend/internal/store/pg"
	"github.com/MiserableTaco/academic-backend/internal/verifier"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.example.yaml", "Path al YAML de config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger todavía no inicializado
		panic("config load: " + err.Error())
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "academicd",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Master key → vault ──
	master, err := masterKey(cfg)
	if err != nil {
		logger.L().Fatal("master key", logger.Err(err))
	}
	vault, err := keyvault.New(master)
	if err != nil {
		logger.L().Fatal("keyvault", logger.Err(err))
	}

	// ── Store ──
	var repo core.Repository
	if dsn := strings.TrimSpace(cfg.Storage.DSN); dsn != "" {
		st, err := pg.New(ctx, dsn, pg.Config{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			logger.L().Fatal("pg store", logger.Err(err))
		}
		defer st.Close()
		repo = st
	} else {
		logger.L().Warn("sin DSN: store en memoria (solo dev)")
		repo = memory.New()
	}

	// ── File storage ──
	var files storage.Store
	switch cfg.Files.Backend {
	case "s3":
		files, err = storage.NewS3(ctx, storage.S3Config{
			Endpoint:  cfg.Files.S3.Endpoint,
			AccessKey: cfg.Files.S3.AccessKey,
			SecretKey: cfg.Files.S3.SecretKey,
			Bucket:    cfg.Files.S3.Bucket,
			UseSSL:    cfg.Files.S3.UseSSL,
		})
	default:
		files, err = storage.NewFS(cfg.Files.FS.Root)
	}
	if err != nil {
		logger.L().Fatal("file storage", logger.Err(err))
	}

	// ── Rate limiters ──
	var signLimiter, verifyLimiter rate.Limiter
	if cfg.Rate.Enabled {
		signWindow := config.Dur(cfg.Rate.Sign.Window, 0)
		verifyWindow := config.Dur(cfg.Rate.Verify.Window, 0)
		if cfg.Rate.Backend == "redis" {
			client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
			signLimiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Sign.Limit, signWindow)
			verifyLimiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Verify.Limit, verifyWindow)
		} else {
			signLimiter = rate.NewMemoryLimiter(cfg.Rate.Sign.Limit, signWindow)
			verifyLimiter = rate.NewMemoryLimiter(cfg.Rate.Verify.Limit, verifyWindow)
		}
	}

	// ── Core wiring ──
	kr := keyring.New(repo, vault)
	sg := signer.New(vault)
	issue := issuance.New(repo, kr, sg, files)
	verify := verifier.New(repo, kr, files)
	ledger := revocation.New(repo)

	handler := httpserver.NewRouter(httpserver.Deps{
		Store:          repo,
		Issuance:       issue,
		Verifier:       verify,
		Ledger:         ledger,
		Keyring:        kr,
		AdminAPIKey:    cfg.Server.AdminAPIKey,
		MaxUploadBytes: cfg.Security.MaxUploadBytes,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		SignLimiter:    signLimiter,
		VerifyLimiter:  verifyLimiter,
	})
	metricsHandler := httpserver.RegisterMetrics(prometheus.DefaultRegisterer)

	if err := httpserver.Serve(ctx, cfg.Server.Addr, cfg.Server.MetricsAddr, handler, metricsHandler); err != nil {
		logger.L().Fatal("server", logger.Err(err))
	}
	logger.L().Info("shutdown limpio")
}

// masterKey resuelve el secreto de proceso. En dev sin configurar se genera
// uno efímero: los envelopes no sobreviven al restart, suficiente para
// probar; en prod la config lo exige.
func masterKey(cfg *config.Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.Security.MasterEncryptionKey); s != "" {
		return keyvault.ParseMasterKey(s)
	}
	logger.L().Warn("MASTER_ENCRYPTION_KEY no seteada: generando clave efímera (solo dev)")
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
