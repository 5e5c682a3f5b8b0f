package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
	"github.com/MiserableTaco/academic-backend/internal/verifier"
)

// handleVerify es el endpoint público de verificación: documento id en el
// path, bytes del archivo en el body (raw o multipart "file"). Body vacío
// verifica contra el ejemplar almacenado. La respuesta nunca expone PII sin
// enmascarar (contrato del verifier, no de esta capa).
// POST /v1/verify/{documentID}
func (a *api) handleVerify(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	fileBytes, ok := a.readVerifyBody(w, r)
	if !ok {
		return
	}

	res, err := a.Verifier.Verify(r.Context(), documentID, fileBytes)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			countVerification("not_found")
			WriteError(w, http.StatusNotFound, "document_not_found", "")
		case errors.Is(err, verifier.ErrSourceUnavailable):
			// "No pudimos chequear" ≠ "es trucho": status 5xx explícito.
			countVerification("error")
			WriteError(w, http.StatusBadGateway, "source_unavailable", "el archivo almacenado no está disponible")
		default:
			countVerification("error")
			WriteError(w, http.StatusServiceUnavailable, "unavailable", "")
		}
		return
	}

	countVerification(verdictOutcome(res))
	WriteJSON(w, http.StatusOK, res)
}

// readVerifyBody acepta multipart (campo "file") o body crudo. Devuelve
// nil si no vino archivo: en ese caso se verifica el ejemplar guardado.
func (a *api) readVerifyBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
			return nil, false
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, true // multipart sin file: verificar ejemplar guardado
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unreadable_file", err.Error())
			return nil, false
		}
		return b, true
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", "")
		return nil, false
	}
	if len(b) == 0 {
		return nil, true
	}
	return b, true
}

func verdictOutcome(res *verifier.Result) string {
	switch {
	case res.Valid:
		return "valid"
	case res.Status == core.DocumentRevoked:
		return "revoked"
	case res.Status == core.DocumentSuperseded:
		return "superseded"
	default:
		return "invalid"
	}
}
