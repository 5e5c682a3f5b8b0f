// admincli: cliente de línea de comandos contra la API de academicd.
// Todas las operaciones salvo verify requieren X-Admin-API-Key.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

// doMultipart arma un form multipart con un archivo y campos extra.
func (c *client) doMultipart(path, filePath string, fields map[string]string) (int, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return 0, nil, err
		}
		defer f.Close()
		part, err := mw.CreateFormFile("file", f.Name())
		if err != nil {
			return 0, nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			return 0, nil, err
		}
	}
	for k, v := range fields {
		if v != "" {
			_ = mw.WriteField(k, v)
		}
	}
	if err := mw.Close(); err != nil {
		return 0, nil, err
	}

	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest("POST", url, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func expect2xx(op string, status int, body []byte) error {
	if status/100 != 2 {
		return fmt.Errorf("%s fallo: status=%d body=%s", op, status, string(body))
	}
	return nil
}

func main() {
	var (
		baseURL = envOr("ACADEMIC_API_URL", "http://localhost:8080")
		apiKey  = envOr("ACADEMIC_ADMIN_KEY", "")
		out     = envOr("ACADEMIC_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "admincli",
		Short: "CLI admin del servicio de documentos académicos",
	}

	root.PersistentFlags().StringVar(&baseURL, "api-url", baseURL, "URL base de la API (env ACADEMIC_API_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "Admin API key (env ACADEMIC_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	httpClient := &http.Client{Timeout: timeout}
	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: httpClient}

	requireKey := func(cmd *cobra.Command, args []string) error {
		if apiKey == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env ACADEMIC_ADMIN_KEY)")
		}
		return nil
	}

	// ── institutions ──
	instCmd := &cobra.Command{Use: "institutions", Short: "Operaciones sobre instituciones", PersistentPreRunE: requireKey}

	var instName, instDomain string
	instCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Dar de alta una institución (genera su primer par de claves)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if instName == "" || instDomain == "" {
				return fmt.Errorf("--name y --email-domain son requeridos")
			}
			b, _ := json.Marshal(map[string]string{"name": instName, "email_domain": instDomain})
			status, body, err := cl.do("POST", "/v1/institutions", b, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("create", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	instCreateCmd.Flags().StringVar(&instName, "name", "", "Nombre de la institución")
	instCreateCmd.Flags().StringVar(&instDomain, "email-domain", "", "Dominio de email (ej. uni.edu)")

	var rotID string
	instRotateCmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotar la clave de firma (las versiones previas siguen verificando)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rotID == "" {
				return fmt.Errorf("--id es requerido")
			}
			status, body, err := cl.do("POST", "/v1/institutions/"+rotID+"/rotate-key", nil, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("rotate-key", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	instRotateCmd.Flags().StringVar(&rotID, "id", "", "ID de la institución")

	statusCmd := func(use, short, action string) *cobra.Command {
		var id string
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if id == "" {
					return fmt.Errorf("--id es requerido")
				}
				status, body, err := cl.do("POST", "/v1/institutions/"+id+"/"+action, nil, nil)
				if err != nil {
					return err
				}
				if err := expect2xx(use, status, body); err != nil {
					return err
				}
				cl.print(status, body)
				return nil
			},
		}
		c.Flags().StringVar(&id, "id", "", "ID de la institución")
		return c
	}

	var revKeyID, revKeyVersion string
	instRevokeKeyCmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Marcar una versión de clave como comprometida",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revKeyID == "" || revKeyVersion == "" {
				return fmt.Errorf("--id y --version son requeridos")
			}
			path := "/v1/institutions/" + revKeyID + "/keys/" + revKeyVersion + "/revoke"
			status, body, err := cl.do("POST", path, nil, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("revoke-key", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	instRevokeKeyCmd.Flags().StringVar(&revKeyID, "id", "", "ID de la institución")
	instRevokeKeyCmd.Flags().StringVar(&revKeyVersion, "version", "", "Versión de clave a marcar")

	var listKeysID string
	instKeysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Listar el historial de claves públicas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listKeysID == "" {
				return fmt.Errorf("--id es requerido")
			}
			status, body, err := cl.do("GET", "/v1/institutions/"+listKeysID+"/keys", nil, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("keys", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	instKeysCmd.Flags().StringVar(&listKeysID, "id", "", "ID de la institución")

	instCmd.AddCommand(instCreateCmd, instRotateCmd,
		statusCmd("suspend", "Suspender una institución (bloquea emisión y verificación)", "suspend"),
		statusCmd("reinstate", "Reactivar una institución suspendida", "reinstate"),
		instRevokeKeyCmd, instKeysCmd)

	// ── users ──
	usersCmd := &cobra.Command{Use: "users", Short: "Operaciones sobre usuarios", PersistentPreRunE: requireKey}

	var uInst, uEmail, uRole string
	var uWhitelisted bool
	userCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Dar de alta un usuario (STUDENT|ISSUER|ADMIN)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uInst == "" || uEmail == "" || uRole == "" {
				return fmt.Errorf("--institution, --email y --role son requeridos")
			}
			b, _ := json.Marshal(map[string]any{
				"institution_id": uInst,
				"email":          uEmail,
				"role":           uRole,
				"whitelisted":    uWhitelisted,
			})
			status, body, err := cl.do("POST", "/v1/users", b, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("create", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	userCreateCmd.Flags().StringVar(&uInst, "institution", "", "ID de la institución")
	userCreateCmd.Flags().StringVar(&uEmail, "email", "", "Email del usuario")
	userCreateCmd.Flags().StringVar(&uRole, "role", "", "Rol: STUDENT|ISSUER|ADMIN")
	userCreateCmd.Flags().BoolVar(&uWhitelisted, "whitelisted", false, "Abrir la ventana de autorización ahora (ISSUER)")

	usersCmd.AddCommand(userCreateCmd)

	// ── documents ──
	docsCmd := &cobra.Command{Use: "documents", Short: "Emisión y revocación de documentos"}

	var issFile, issIssuer, issRecipient, issType string
	docIssueCmd := &cobra.Command{
		Use:               "issue",
		Short:             "Firmar y emitir un documento",
		PersistentPreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			if issFile == "" || issIssuer == "" || issRecipient == "" {
				return fmt.Errorf("--file, --issuer y --recipient son requeridos")
			}
			status, body, err := cl.doMultipart("/v1/documents", issFile, map[string]string{
				"issuer_id":    issIssuer,
				"recipient_id": issRecipient,
				"type":         issType,
			})
			if err != nil {
				return err
			}
			if err := expect2xx("issue", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	docIssueCmd.Flags().StringVar(&issFile, "file", "", "Path al archivo a firmar")
	docIssueCmd.Flags().StringVar(&issIssuer, "issuer", "", "ID del usuario emisor")
	docIssueCmd.Flags().StringVar(&issRecipient, "recipient", "", "ID del usuario destinatario")
	docIssueCmd.Flags().StringVar(&issType, "type", "diploma", "Tipo de documento (diploma, analítico, ...)")

	var revDocID, revReason, revActor string
	docRevokeCmd := &cobra.Command{
		Use:               "revoke",
		Short:             "Revocar un documento (terminal, no se deshace)",
		PersistentPreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			if revDocID == "" || revReason == "" {
				return fmt.Errorf("--id y --reason son requeridos")
			}
			b, _ := json.Marshal(map[string]string{"reason": revReason, "actor_id": revActor})
			status, body, err := cl.do("POST", "/v1/documents/"+revDocID+"/revoke", b, nil)
			if err != nil {
				return err
			}
			if err := expect2xx("revoke", status, body); err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}
	docRevokeCmd.Flags().StringVar(&revDocID, "id", "", "ID del documento")
	docRevokeCmd.Flags().StringVar(&revReason, "reason", "", "Motivo de revocación")
	docRevokeCmd.Flags().StringVar(&revActor, "actor", "", "ID del usuario que revoca")

	var verDocID, verFile string
	docVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verificar un documento (endpoint público, no requiere key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verDocID == "" {
				return fmt.Errorf("--id es requerido")
			}
			var body []byte
			if verFile != "" {
				b, err := os.ReadFile(verFile)
				if err != nil {
					return err
				}
				body = b
			}
			url := strings.TrimRight(cl.BaseURL, "/") + "/v1/verify/" + verDocID
			req, err := http.NewRequest("POST", url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/octet-stream")
			}
			resp, err := cl.HTTP.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			respBody, _ := io.ReadAll(resp.Body)
			cl.print(resp.StatusCode, respBody)
			return nil
		},
	}
	docVerifyCmd.Flags().StringVar(&verDocID, "id", "", "ID del documento")
	docVerifyCmd.Flags().StringVar(&verFile, "file", "", "Archivo a cotejar (si se omite usa la copia guardada)")

	docsCmd.AddCommand(docIssueCmd, docRevokeCmd, docVerifyCmd)

	root.AddCommand(instCmd, usersCmd, docsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
