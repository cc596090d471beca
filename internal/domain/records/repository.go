package records

import "context"

// Repository persiste registros ya sellados (campos sensibles cifrados).
type Repository interface {
	Create(ctx context.Context, r Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]Record, error)
}
