package verifier

import (
	"strings"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

// DocumentInfo es lo único que el verdict revela sobre el documento. El
// endpoint de verificación es público (cualquiera con los bytes puede
// consultar), así que la redacción de PII es parte del contrato del core,
// no cortesía de la capa de rutas.
type DocumentInfo struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	IssuedAt    time.Time `json:"issued_at"`
	Algorithm   string    `json:"algorithm"`
	KeyVersion  int       `json:"key_version"`
	IssuerEmail string    `json:"issuer_email"` // siempre enmascarado
}

func publicDocumentInfo(d *core.Document) *DocumentInfo {
	return &DocumentInfo{
		ID:          d.ID,
		Type:        d.Type,
		IssuedAt:    d.IssuedAt,
		Algorithm:   d.Metadata.Algorithm,
		KeyVersion:  d.Metadata.KeyVersion,
		IssuerEmail: MaskEmail(d.Metadata.IssuerEmail),
	}
}

// MaskEmail enmascara un email dejando la primera letra del usuario y del
// dominio: "ana.perez@uni.edu" → "a…@u….edu". Para strings sin '@' devuelve
// una versión casi totalmente oculta.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		if s == "" {
			return ""
		}
		if len(s) <= 3 {
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}
