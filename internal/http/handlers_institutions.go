package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// handleOnboardInstitution crea la institución con su primer par de claves.
// POST /v1/institutions — {"name": "...", "email_domain": "uni.edu"}
func (a *api) handleOnboardInstitution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		EmailDomain string `json:"email_domain"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.EmailDomain = strings.ToLower(strings.TrimSpace(req.EmailDomain))
	if req.Name == "" || req.EmailDomain == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "name y email_domain son requeridos")
		return
	}

	inst, err := a.Keyring.OnboardInstitution(r.Context(), uuid.NewString(), req.Name, req.EmailDomain)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			WriteError(w, http.StatusConflict, "conflict", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	WriteJSON(w, http.StatusCreated, inst)
}

// handleRotateKey genera y activa una nueva versión de clave. Las versiones
// anteriores siguen verificando documentos viejos.
// POST /v1/institutions/{institutionID}/rotate-key
func (a *api) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	institutionID := chi.URLParam(r, "institutionID")

	v, err := a.Keyring.Rotate(r.Context(), institutionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "institution_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}

	countKeyRotation()
	WriteJSON(w, http.StatusOK, map[string]any{
		"institution_id": institutionID,
		"key_version":    v,
	})
}

func (a *api) handleSuspend(w http.ResponseWriter, r *http.Request) {
	a.setInstitutionStatus(w, r, core.InstitutionSuspended)
}

func (a *api) handleReinstate(w http.ResponseWriter, r *http.Request) {
	a.setInstitutionStatus(w, r, core.InstitutionActive)
}

func (a *api) setInstitutionStatus(w http.ResponseWriter, r *http.Request, status core.InstitutionStatus) {
	institutionID := chi.URLParam(r, "institutionID")
	if err := a.Store.SetInstitutionStatus(r.Context(), institutionID, status); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "institution_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"institution_id": institutionID,
		"status":         status,
	})
}

// handleRevokeKeyVersion marca una versión histórica como comprometida:
// documentos firmados DESPUÉS de la marca dejan de verificar.
// POST /v1/institutions/{institutionID}/keys/{version}/revoke
func (a *api) handleRevokeKeyVersion(w http.ResponseWriter, r *http.Request) {
	institutionID := chi.URLParam(r, "institutionID")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		WriteError(w, http.StatusBadRequest, "invalid_version", "")
		return
	}

	if err := a.Keyring.RevokeKeyVersion(r.Context(), institutionID, version); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "key_version_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"institution_id": institutionID,
		"key_version":    version,
		"revoked":        true,
	})
}

// handleListKeys lista el historial (solo claves públicas; la privada
// cifrada jamás sale en respuestas).
// GET /v1/institutions/{institutionID}/keys
func (a *api) handleListKeys(w http.ResponseWriter, r *http.Request) {
	institutionID := chi.URLParam(r, "institutionID")
	keys, err := a.Store.ListKeyVersions(r.Context(), institutionID)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}
