package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MiserableTaco/academic-backend/internal/issuance"
	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/rate"
	"github.com/MiserableTaco/academic-backend/internal/revocation"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
	"github.com/MiserableTaco/academic-backend/internal/verifier"
)

// Deps agrupa todo lo que necesitan los handlers.
type Deps struct {
	Store    core.Repository
	Issuance *issuance.Service
	Verifier *verifier.Verifier
	Ledger   *revocation.Ledger
	Keyring  *keyring.Keyring

	AdminAPIKey    string
	MaxUploadBytes int64
	CORSOrigins    []string
	SignLimiter    rate.Limiter
	VerifyLimiter  rate.Limiter
}

type api struct{ Deps }

// NewRouter arma el router completo: verificación pública + operaciones de
// emisión/administración guardadas por admin key.
func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d}
	r := chi.NewRouter()

	r.Use(WithRecover, WithRequestID, WithSecurityHeaders, WithLogging)

	// Health
	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)

	// Verificación pública: cualquiera con el id y los bytes puede consultar.
	r.With(limit(d.VerifyLimiter, "verify")).Post("/v1/verify/{documentID}", a.handleVerify)

	// Emisión y administración
	r.Group(func(r chi.Router) {
		r.Use(admin(d.AdminAPIKey))

		r.With(limit(d.SignLimiter, "sign")).Post("/v1/documents", a.handleIssue)
		r.Post("/v1/documents/{documentID}/revoke", a.handleRevoke)
		r.Delete("/v1/documents/{documentID}", a.handleDeleteDocument)

		r.Post("/v1/institutions", a.handleOnboardInstitution)
		r.Post("/v1/institutions/{institutionID}/rotate-key", a.handleRotateKey)
		r.Post("/v1/institutions/{institutionID}/suspend", a.handleSuspend)
		r.Post("/v1/institutions/{institutionID}/reinstate", a.handleReinstate)
		r.Post("/v1/institutions/{institutionID}/keys/{version}/revoke", a.handleRevokeKeyVersion)
		r.Get("/v1/institutions/{institutionID}/keys", a.handleListKeys)

		r.Post("/v1/users", a.handleCreateUser)
	})

	var h http.Handler = r
	if len(d.CORSOrigins) > 0 {
		h = WithCORS(h, d.CORSOrigins)
	}
	return h
}

func limit(l rate.Limiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return WithRateLimit(next, l, name)
	}
}

func admin(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return WithAdminKey(next, key)
	}
}
