package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// handleCreateUser da de alta un usuario. Para ISSUER, whitelisted=true
// abre la ventana de autorización ahora.
// POST /v1/users — {"institution_id", "email", "role", "whitelisted"}
func (a *api) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstitutionID string `json:"institution_id"`
		Email         string `json:"email"`
		Role          string `json:"role"`
		Whitelisted   bool   `json:"whitelisted"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}

	role := core.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	switch role {
	case core.RoleStudent, core.RoleIssuer, core.RoleAdmin:
	default:
		WriteError(w, http.StatusBadRequest, "invalid_role", "role debe ser STUDENT|ISSUER|ADMIN")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.InstitutionID == "" || req.Email == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "institution_id y email son requeridos")
		return
	}

	if _, err := a.Store.GetInstitution(r.Context(), req.InstitutionID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "institution_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}

	now := time.Now().UTC()
	u := &core.User{
		ID:            uuid.NewString(),
		InstitutionID: req.InstitutionID,
		Email:         req.Email,
		Role:          role,
		CreatedAt:     now,
	}
	if req.Whitelisted {
		u.WhitelistedAt = &now
	}

	if err := a.Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			WriteError(w, http.StatusConflict, "conflict", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	WriteJSON(w, http.StatusCreated, u)
}
