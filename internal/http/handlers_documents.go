package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MiserableTaco/academic-backend/internal/authz"
	"github.com/MiserableTaco/academic-backend/internal/issuance"
	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/revocation"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// handleIssue firma y emite un documento.
// POST /v1/documents — multipart: file, issuer_id, recipient_id, type
func (a *api) handleIssue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}

	issuerID := r.FormValue("issuer_id")
	recipientID := r.FormValue("recipient_id")
	docType := r.FormValue("type")
	if issuerID == "" || recipientID == "" {
		WriteError(w, http.StatusBadRequest, "missing_fields", "issuer_id y recipient_id son requeridos")
		return
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing_file", "falta el campo file")
		return
	}
	defer f.Close()
	fileBytes, err := io.ReadAll(f)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "unreadable_file", err.Error())
		return
	}

	actor, err := a.Store.GetUser(r.Context(), issuerID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "issuer_not_found", "")
		return
	}
	if !authz.Can(actor, authz.ActionIssueDocument, actor.InstitutionID, "") {
		WriteError(w, http.StatusForbidden, "forbidden", "el rol del actor no permite emitir")
		return
	}

	doc, err := a.Issuance.Issue(r.Context(), issuerID, recipientID, fileBytes, docType)
	if err != nil {
		writeIssueError(w, err)
		return
	}

	countSigned(doc.Type)
	WriteJSON(w, http.StatusCreated, doc)
}

func writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, issuance.ErrEmptyFile),
		errors.Is(err, issuance.ErrMissingDocumentType):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, issuance.ErrIssuerNotAuthorized),
		errors.Is(err, issuance.ErrRecipientNotInTenant):
		WriteError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, issuance.ErrInstitutionSuspended):
		WriteError(w, http.StatusConflict, "institution_suspended", "")
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, core.ErrInvariant), errors.Is(err, keyring.ErrKeyVersionNotFound):
		WriteError(w, http.StatusInternalServerError, "key_state_error", "")
	default:
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
	}
}

// handleRevoke revoca un documento (terminal, one-way).
// POST /v1/documents/{documentID}/revoke — {"reason": "...", "actor_id": "..."}
func (a *api) handleRevoke(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var req struct {
		Reason  string `json:"reason"`
		ActorID string `json:"actor_id"`
	}
	if !ReadJSON(w, r, &req) {
		return
	}

	doc, err := a.Store.GetDocument(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "document_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}

	actor, err := a.Store.GetUser(r.Context(), req.ActorID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "actor_not_found", "")
		return
	}
	if !authz.Can(actor, authz.ActionRevokeDocument, doc.InstitutionID, "") {
		WriteError(w, http.StatusForbidden, "forbidden", "")
		return
	}

	rec, err := a.Ledger.Revoke(r.Context(), documentID, req.Reason, req.ActorID)
	if err != nil {
		switch {
		case errors.Is(err, revocation.ErrAlreadyRevoked):
			WriteError(w, http.StatusConflict, "already_revoked", "la revocación es terminal y no se sobreescribe")
		case errors.Is(err, revocation.ErrEmptyReason):
			WriteError(w, http.StatusBadRequest, "reason_required", "")
		default:
			WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		}
		return
	}

	countRevocation()
	WriteJSON(w, http.StatusCreated, rec)
}

// handleDeleteDocument: borrado administrativo del documento. El registro
// de revocación (si existe) queda.
// DELETE /v1/documents/{documentID}
func (a *api) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if err := a.Store.DeleteDocument(r.Context(), documentID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "document_not_found", "")
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		return
	}
	logger.From(r.Context()).Info("document deleted", logger.DocumentID(documentID))
	w.WriteHeader(http.StatusNoContent)
}
