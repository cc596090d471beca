// Package disclosure es el ÚNICO lugar que decide qué revela cada scope.
// Tanto la vista del médico (vía access request aprobado) como la vista
// pública (vía share token) pasan por Project, así los dos caminos nunca
// divergen en lo que exponen para un mismo scope.
package disclosure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"medical-record-access/internal/domain/patients"
	"medical-record-access/internal/domain/records"
)

// Scope define los niveles de divulgación soportados.
// @Enum full, basic, records_only, allergies_only
type Scope string

const (
	ScopeFull          Scope = "full"
	ScopeBasic         Scope = "basic"
	ScopeRecordsOnly   Scope = "records_only"
	ScopeAllergiesOnly Scope = "allergies_only"
)

var ErrInvalidScope = errors.New("invalid access scope")

// ParseScope valida estrictamente; los scopes se validan al emitir el token,
// nunca al consumirlo.
func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.TrimSpace(raw))
	switch s {
	case ScopeFull, ScopeBasic, ScopeRecordsOnly, ScopeAllergiesOnly:
		return s, nil
	}
	return "", ErrInvalidScope
}

// ProfileView es el perfil ya filtrado por scope. Los campos omitidos por el
// scope quedan en su valor cero y no se serializan.
type ProfileView struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`

	DateOfBirth *time.Time          `json:"date_of_birth,omitempty"`
	BloodGroup  patients.BloodGroup `json:"blood_group,omitempty"`

	Allergies string `json:"allergies,omitempty"`

	EmergencyContactName   string `json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber string `json:"emergency_contact_number,omitempty"`
}

// View es el resultado de una proyección: perfil filtrado + registros.
type View struct {
	Profile ProfileView      `json:"profile"`
	Records []records.Record `json:"records"`
}

// Project filtra (perfil, historial) según el scope. Es pura, sin efectos.
//
//   - full: DOB, grupo sanguíneo, contacto de emergencia, alergias; historial completo
//   - basic: DOB, grupo sanguíneo, contacto de emergencia; sin alergias ni historial
//   - allergies_only: solo alergias
//   - records_only: historial completo; perfil reducido a identidad
//
// Un scope desconocido es un bug del programa (la emisión valida), no un
// caso de degradado: aquí se falla fuerte.
func Project(scope Scope, profile patients.Profile, recs []records.Record) View {
	view := View{
		Profile: ProfileView{
			ID:       profile.ID,
			FullName: profile.FullName,
		},
		Records: []records.Record{},
	}

	switch scope {
	case ScopeFull:
		view.Profile.DateOfBirth = profile.DateOfBirth
		view.Profile.BloodGroup = profile.BloodGroup
		view.Profile.EmergencyContactName = profile.EmergencyContactName
		view.Profile.EmergencyContactNumber = profile.EmergencyContactNumber
		view.Profile.Allergies = profile.Allergies
		view.Records = append(view.Records, recs...)

	case ScopeBasic:
		view.Profile.DateOfBirth = profile.DateOfBirth
		view.Profile.BloodGroup = profile.BloodGroup
		view.Profile.EmergencyContactName = profile.EmergencyContactName
		view.Profile.EmergencyContactNumber = profile.EmergencyContactNumber

	case ScopeAllergiesOnly:
		view.Profile.Allergies = profile.Allergies

	case ScopeRecordsOnly:
		view.Records = append(view.Records, recs...)

	default:
		panic(fmt.Sprintf("disclosure: unknown scope %q", scope))
	}

	return view
}
