package sharetokens

import (
	"time"

	"medical-record-access/internal/domain/disclosure"
)

// ShareToken es una credencial portadora (capability) para acceso anónimo,
// acotado en tiempo y usos, al historial de UN paciente. El token crudo se
// entrega una sola vez al emitirlo; aquí solo vive su hash: perder el crudo
// equivale a revocar.
type ShareToken struct {
	ID        string
	PatientID string

	// TokenHash es SHA-256 hex del token crudo. El crudo jamás se persiste
	// ni se loguea.
	TokenHash string

	AccessScope disclosure.Scope

	ExpiresAt time.Time

	// UsageLimit nil = ilimitado. UsageCount nunca supera el límite.
	UsageLimit *int
	UsageCount int

	// SharedWithEmail es solo para auditoría; no restringe el acceso.
	SharedWithEmail string

	IsActive       bool
	LastAccessedAt *time.Time

	CreatedAt time.Time
}

// Usable indica si el token admite un uso más en `now`. El scope o el
// paciente de un token nunca se mutan: revocar y reemitir es el único
// camino para cambiar condiciones.
func (t ShareToken) Usable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if !t.ExpiresAt.After(now) {
		return false
	}
	if t.UsageLimit != nil && t.UsageCount >= *t.UsageLimit {
		return false
	}
	return true
}
