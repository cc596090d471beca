package patients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medical-record-access/internal/middleware"
	"medical-record-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// ViewGrants responde si un médico tiene acceso de lectura vigente sobre
// un paciente. La implementa el módulo de access requests; se define aquí
// para no importar ese paquete desde este.
type ViewGrants interface {
	CanView(ctx context.Context, doctorID, patientID string) (bool, error)
}

func RegisterRoutes(r chi.Router, svc *Service, grants ViewGrants) {
	r.Route("/patients", func(pr chi.Router) {
		// Perfil propio (paciente)
		pr.Get("/me", getOwnProfileHandler(svc))
		pr.Put("/me", upsertProfileHandler(svc))

		// Perfil de un paciente (médico con acceso aprobado vigente)
		pr.Get("/{patientID}", getPatientProfileHandler(svc, grants))
	})
}

type upsertProfileRequest struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD opcional
	BloodGroup  string `json:"blood_group"`

	Allergies string `json:"allergies"`

	EmergencyContactName   string `json:"emergency_contact_name"`
	EmergencyContactNumber string `json:"emergency_contact_number"`
}

type profileResponse struct {
	ID          string     `json:"id"`
	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	BloodGroup  BloodGroup `json:"blood_group,omitempty"`

	Allergies string `json:"allergies,omitempty"`

	EmergencyContactName   string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber string    `json:"emergency_contact_number,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// @Summary Crear o actualizar perfil de paciente
// @Description Upsert del perfil del usuario autenticado. Las alergias se
// @Description cifran antes de persistir.
func upsertProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can manage a profile", http.StatusForbidden)
			return
		}

		var req upsertProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var dob *time.Time
		if strings.TrimSpace(req.DateOfBirth) != "" {
			t, err := time.Parse("2006-01-02", req.DateOfBirth)
			if err != nil {
				http.Error(w, "date_of_birth must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			dob = &t
		}

		p, err := svc.Upsert(r.Context(), claims.UserID, UpsertInput{
			FullName:               req.FullName,
			DateOfBirth:            dob,
			BloodGroup:             BloodGroup(strings.TrimSpace(req.BloodGroup)),
			Allergies:              req.Allergies,
			EmergencyContactName:   req.EmergencyContactName,
			EmergencyContactNumber: req.EmergencyContactNumber,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

// @Summary Ver perfil propio
func getOwnProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.GetByUserID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

// @Summary Ver perfil de un paciente (médico)
// @Description Requiere un access request aprobado y vigente. El acceso del
// @Description médico siempre es de alcance completo; los alcances parciales
// @Description existen solo en los share tokens.
func getPatientProfileHandler(svc *Service, grants ViewGrants) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can view patient profiles", http.StatusForbidden)
			return
		}

		patientID := chi.URLParam(r, "patientID")

		allowed, err := grants.CanView(r.Context(), claims.UserID, patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			// No confirmar existencia del paciente a quien no tiene acceso.
			http.Error(w, "patient not found or not authorized", http.StatusNotFound)
			return
		}

		p, err := svc.GetByID(r.Context(), patientID)
		if err != nil {
			http.Error(w, "patient not found or not authorized", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(p))
	}
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		ID:                     p.ID,
		FullName:               p.FullName,
		DateOfBirth:            p.DateOfBirth,
		BloodGroup:             p.BloodGroup,
		Allergies:              p.Allergies,
		EmergencyContactName:   p.EmergencyContactName,
		EmergencyContactNumber: p.EmergencyContactNumber,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
