package accessrequests

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateActive lo devuelve Create cuando otra solicitud activa para el
// mismo par (médico, paciente) ganó la carrera. La verificación y el insert
// son una sola unidad atómica en el repositorio.
var (
	ErrDuplicateActive = errors.New("active request already exists")

	// ErrRepoNotFound distingue "no hay fila" de una falla real de storage;
	// HasAccess niega en silencio lo primero y deja rastro de lo segundo.
	ErrRepoNotFound = errors.New("request not found")
)

type Repository interface {
	// Create inserta solo si no existe otra solicitud activa (pending o
	// approved, sin expirar a `now`) para el mismo par; si existe devuelve
	// ErrDuplicateActive.
	Create(ctx context.Context, r AccessRequest, now time.Time) error
	Update(ctx context.Context, r AccessRequest) error
	GetByID(ctx context.Context, id string) (AccessRequest, error)
	// SoftDelete marca DeletedAt; la fila deja de ser visible para lecturas.
	SoftDelete(ctx context.Context, id string, now time.Time) error

	// GetActive devuelve la solicitud pending/approved sin expirar del par.
	GetActive(ctx context.Context, doctorID, patientID string, now time.Time) (AccessRequest, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]AccessRequest, error)
	ListByPatient(ctx context.Context, patientID string) ([]AccessRequest, error)

	// ExpireStale pasa a expired las pending/approved con expiresAt vencido.
	// Barrido consultivo e idempotente; cada lectura reverifica por su cuenta.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}
