package patients

import "time"

// BloodGroup define los grupos sanguíneos soportados.
// @Enum A+, A-, B+, B-, AB+, AB-, O+, O-
type BloodGroup string

const (
	BloodAPos  BloodGroup = "A+"
	BloodANeg  BloodGroup = "A-"
	BloodBPos  BloodGroup = "B+"
	BloodBNeg  BloodGroup = "B-"
	BloodABPos BloodGroup = "AB+"
	BloodABNeg BloodGroup = "AB-"
	BloodOPos  BloodGroup = "O+"
	BloodONeg  BloodGroup = "O-"
)

// Profile representa el perfil clínico de un paciente.
// Allergies viaja en claro dentro del dominio; el service lo cifra/descifra
// en la frontera con el repositorio.
type Profile struct {
	ID     string
	UserID string

	FullName    string
	DateOfBirth *time.Time
	BloodGroup  BloodGroup

	Allergies string

	EmergencyContactName   string
	EmergencyContactNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}
