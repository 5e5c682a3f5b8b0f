package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MiserableTaco/academic-backend/internal/issuance"
	"github.com/MiserableTaco/academic-backend/internal/keyring"
	"github.com/MiserableTaco/academic-backend/internal/keyvault"
	"github.com/MiserableTaco/academic-backend/internal/rate"
	"github.com/MiserableTaco/academic-backend/internal/revocation"
	"github.com/MiserableTaco/academic-backend/internal/signer"
	"github.com/MiserableTaco/academic-backend/internal/storage"
	"github.com/MiserableTaco/academic-backend/internal/store/memory"
	"github.com/MiserableTaco/academic-backend/internal/verifier"
)

const testAdminKey = "super-secreta"

func newTestServer(t *testing.T, signLimiter rate.Limiter) *httptest.Server {
	t.Helper()
	master := make([]byte, 32)
	for i := range master {
		master[i] = byte(i + 101)
	}
	v, err := keyvault.New(master)
	require.NoError(t, err)

	st := memory.New()
	kr := keyring.New(st, v)
	sg := signer.New(v)
	files, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	h := NewRouter(Deps{
		Store:          st,
		Issuance:       issuance.New(st, kr, sg, files),
		Verifier:       verifier.New(st, kr, files),
		Ledger:         revocation.New(st),
		Keyring:        kr,
		AdminAPIKey:    testAdminKey,
		MaxUploadBytes: 1 << 20,
		SignLimiter:    signLimiter,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func adminJSON(t *testing.T, srv *httptest.Server, method, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func issueMultipart(t *testing.T, srv *httptest.Server, issuerID, recipientID, docType string, file []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "diploma.pdf")
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("issuer_id", issuerID))
	require.NoError(t, mw.WriteField("recipient_id", recipientID))
	require.NoError(t, mw.WriteField("type", docType))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func verifyRaw(t *testing.T, srv *httptest.Server, docID string, file []byte) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/verify/"+docID, bytes.NewReader(file))
	require.NoError(t, err)
	if file != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// seedTenant onboardea una institución vía API y crea emisor y alumno.
// Devuelve (institutionID, issuerID, studentID).
func seedTenant(t *testing.T, srv *httptest.Server) (string, string, string) {
	t.Helper()
	resp, inst := adminJSON(t, srv, http.MethodPost, "/v1/institutions",
		map[string]string{"name": "Uni Uno", "email_domain": "uni1.edu"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	instID := inst["id"].(string)

	resp, iss := adminJSON(t, srv, http.MethodPost, "/v1/users", map[string]any{
		"institution_id": instID, "email": "ana@uni1.edu", "role": "ISSUER", "whitelisted": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, stu := adminJSON(t, srv, http.MethodPost, "/v1/users", map[string]any{
		"institution_id": instID, "email": "leo@uni1.edu", "role": "STUDENT"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return instID, iss["id"].(string), stu["id"].(string)
}

func TestAdminEndpoints_RequireKey(t *testing.T) {
	srv := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/institutions",
		strings.NewReader(`{"name":"x","email_domain":"x.edu"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/v1/institutions",
		strings.NewReader(`{"name":"x","email_domain":"x.edu"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-API-Key", "equivocada")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueVerifyRevoke_FullFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	_, issuerID, studentID := seedTenant(t, srv)
	file := []byte("diploma de Leo, Lic. en Letras")

	// emitir
	resp, doc := issueMultipart(t, srv, issuerID, studentID, "diploma", file)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	docID := doc["id"].(string)
	require.NotEmpty(t, docID)

	// verificar con los bytes correctos (endpoint público, sin key)
	resp, verdict := verifyRaw(t, srv, docID, file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, verdict["valid"])

	// el email del emisor sale enmascarado
	docInfo := verdict["document"].(map[string]any)
	require.NotContains(t, docInfo["issuer_email"].(string), "ana@")

	// verificar con bytes alterados
	tampered := append([]byte{}, file...)
	tampered[0] ^= 0x01
	resp, verdict = verifyRaw(t, srv, docID, tampered)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, verdict["valid"])

	// revocar
	resp, _ = adminJSON(t, srv, http.MethodPost, "/v1/documents/"+docID+"/revoke",
		map[string]string{"reason": "error administrativo", "actor_id": issuerID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// segunda revocación: rechazo idempotente
	resp, _ = adminJSON(t, srv, http.MethodPost, "/v1/documents/"+docID+"/revoke",
		map[string]string{"reason": "otra razón", "actor_id": issuerID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// el verdict ahora es terminal
	resp, verdict = verifyRaw(t, srv, docID, file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, verdict["valid"])
	require.Equal(t, "REVOKED", verdict["status"])

	// borrar el documento no borra la revocación
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/documents/"+docID, nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	delResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	resp, verdict = verifyRaw(t, srv, docID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "REVOKED", verdict["status"])
}

func TestVerify_UnknownDocument404(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := verifyRaw(t, srv, "no-existe", []byte("x"))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "document_not_found", body["error"])
}

func TestRotateKey_OldDocumentsStillVerify(t *testing.T) {
	srv := newTestServer(t, nil)
	instID, issuerID, studentID := seedTenant(t, srv)
	file := []byte("firmado bajo v1")

	resp, doc := issueMultipart(t, srv, issuerID, studentID, "diploma", file)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, rot := adminJSON(t, srv, http.MethodPost, "/v1/institutions/"+instID+"/rotate-key", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), rot["key_version"])

	resp, verdict := verifyRaw(t, srv, doc["id"].(string), file)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, verdict["valid"])
}

func TestSuspend_BlocksIssuance(t *testing.T) {
	srv := newTestServer(t, nil)
	instID, issuerID, studentID := seedTenant(t, srv)

	resp, _ := adminJSON(t, srv, http.MethodPost, "/v1/institutions/"+instID+"/suspend", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = issueMultipart(t, srv, issuerID, studentID, "diploma", []byte("x"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// reinstate habilita de nuevo
	resp, _ = adminJSON(t, srv, http.MethodPost, "/v1/institutions/"+instID+"/reinstate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = issueMultipart(t, srv, issuerID, studentID, "diploma", []byte("x"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestListKeys_NeverExposesPrivateKey(t *testing.T) {
	srv := newTestServer(t, nil)
	instID, _, _ := seedTenant(t, srv)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/institutions/"+instID+"/keys", nil)
	req.Header.Set("X-Admin-API-Key", testAdminKey)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Keys, 1)
	_, leaked := out.Keys[0]["encrypted_private_key"]
	require.False(t, leaked, "la privada cifrada salió en la respuesta")
	require.NotEmpty(t, out.Keys[0]["public_key_pem"])
}

func TestSignRateLimit(t *testing.T) {
	srv := newTestServer(t, rate.NewMemoryLimiter(1, time.Minute))
	_, issuerID, studentID := seedTenant(t, srv)

	resp, _ := issueMultipart(t, srv, issuerID, studentID, "diploma", []byte("uno"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := issueMultipart(t, srv, issuerID, studentID, "diploma", []byte("dos"))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "rate_limited", body["error"])
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}
