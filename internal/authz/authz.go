// Package authz es el chequeo de capacidades de la capa de borde:
// (rol del actor, ownership del recurso) → allow/deny. El core de
// verificación es agnóstico de roles; acá vive el branching que antes
// estaría repartido por las rutas.
package authz

import "github.com/MiserableTaco/academic-backend/internal/store/core"

// Action identifica una operación sensible del servicio.
type Action string

const (
	ActionIssueDocument  Action = "document.issue"
	ActionRevokeDocument Action = "document.revoke"
	ActionRotateKey      Action = "institution.rotate_key"
	ActionSuspend        Action = "institution.suspend"
	ActionReadDocument   Action = "document.read"
)

// Can decide si actor puede ejecutar action sobre un recurso de
// resourceInstitution (y, para lecturas, de resourceOwner).
func Can(actor *core.User, action Action, resourceInstitution, resourceOwner string) bool {
	if actor == nil {
		return false
	}
	sameTenant := actor.InstitutionID == resourceInstitution

	switch actor.Role {
	case core.RoleAdmin:
		// Admin opera solo dentro de su institución.
		return sameTenant
	case core.RoleIssuer:
		switch action {
		case ActionIssueDocument, ActionRevokeDocument, ActionReadDocument:
			return sameTenant
		}
		return false
	case core.RoleStudent:
		// Un alumno solo lee lo propio.
		return action == ActionReadDocument && actor.ID == resourceOwner
	}
	return false
}
