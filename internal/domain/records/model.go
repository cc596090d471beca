package records

import "time"

// Record representa una entrada del historial médico de un paciente.
// Description, Diagnosis, Prescription y Notes se guardan cifrados; dentro
// del dominio siempre viajan en claro (el codec traduce en la frontera
// con el repositorio).
type Record struct {
	ID        string
	PatientID string

	// DoctorID vacío cuando el propio paciente registró la entrada.
	DoctorID string

	Title        string
	Description  string
	Diagnosis    string
	Prescription string
	Notes        string

	RecordDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
