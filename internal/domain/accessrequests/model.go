package accessrequests

import "time"

// RequestType define qué acceso pide el médico.
// @Enum view, create, both
type RequestType string

const (
	TypeView   RequestType = "view"
	TypeCreate RequestType = "create"
	TypeBoth   RequestType = "both"
)

// Covers indica si el tipo solicitado cubre el acceso buscado.
// "both" cubre ambos; "view" y "create" solo a sí mismos.
func (t RequestType) Covers(want RequestType) bool {
	return t == TypeBoth || t == want
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// Límites de duración en horas (0.5 = 30 minutos, 720 = 30 días).
// Aplican tanto a la duración pedida como a la personalizada al aprobar.
const (
	MinDurationHours     = 0.5
	MaxDurationHours     = 720
	DefaultDurationHours = 48
)

// AccessRequest es la solicitud de un médico para acceder temporalmente al
// historial de UN paciente. Solo puede existir una solicitud activa
// (pending o approved, sin expirar) por par (médico, paciente).
type AccessRequest struct {
	ID        string
	DoctorID  string
	PatientID string

	RequestType RequestType
	Status      Status
	Reason      string

	RequestedHours float64
	// ApprovedHours solo se fija al aprobar; guarda la duración usada.
	ApprovedHours *float64

	ExpiresAt   time.Time
	RespondedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	// DeletedAt marca la cancelación del médico (borrado suave).
	DeletedAt *time.Time
}

// Active: pending o approved y sin expirar. Bloquea solicitudes duplicadas
// y es la condición del grant efectivo.
func (r AccessRequest) Active(now time.Time) bool {
	if r.DeletedAt != nil {
		return false
	}
	if r.Status != StatusPending && r.Status != StatusApproved {
		return false
	}
	return r.ExpiresAt.After(now)
}

func (r AccessRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

func validRequestType(t RequestType) bool {
	switch t {
	case TypeView, TypeCreate, TypeBoth:
		return true
	}
	return false
}

func validDurationHours(h float64) bool {
	return h >= MinDurationHours && h <= MaxDurationHours
}
