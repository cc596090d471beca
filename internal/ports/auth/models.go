package auth

// Role distingue los dos actores del sistema. Los handlers la usan para
// decidir qué operaciones permite cada identidad.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role
}
