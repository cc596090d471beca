package records

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

// PatientRefLookup resuelve el perfil de paciente del usuario autenticado.
// La implementa el módulo de pacientes; se define aquí para no importarlo.
type PatientRefLookup interface {
	RefOf(ctx context.Context, userID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patientRefs PatientRefLookup) {
	r.Route("/records", func(rr chi.Router) {
		// Historial propio (paciente)
		rr.Get("/", listOwnRecordsHandler(svc, patientRefs))
		rr.Post("/", createOwnRecordHandler(svc, patientRefs))
	})

	// Historial de un paciente (médico con grant vigente)
	r.Route("/patients/{patientID}/records", func(rr chi.Router) {
		rr.Get("/", listPatientRecordsHandler(svc))
		rr.Post("/", createPatientRecordHandler(svc))
	})
}

type createRecordRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	Notes        string `json:"notes"`
	RecordDate   string `json:"record_date"` // YYYY-MM-DD opcional, default hoy
}

type recordResponse struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	DoctorID     string    `json:"doctor_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	RecordDate   time.Time `json:"record_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// @Summary Listar historial propio
func listOwnRecordsHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can list their own records", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			// Sin perfil no hay historial: lista vacía, no error.
			writeJSON(w, http.StatusOK, []recordResponse{})
			return
		}

		items, err := svc.ListForPatient(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponses(items))
	}
}

// @Summary Registrar entrada en el historial propio
func createOwnRecordHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can write to their own history", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "patient profile required", http.StatusBadRequest)
			return
		}

		in, httpErr := decodeCreateRecord(r)
		if httpErr != "" {
			http.Error(w, httpErr, http.StatusBadRequest)
			return
		}

		rec, err := svc.CreateByPatient(r.Context(), patientID, in)
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// @Summary Listar historial de un paciente (médico)
// @Description Requiere un access request aprobado y vigente de tipo view o both.
func listPatientRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can view patient records", http.StatusForbidden)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		items, err := svc.ListForDoctor(r.Context(), claims.UserID, patientID)
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponses(items))
	}
}

// @Summary Registrar entrada en el historial de un paciente (médico)
// @Description Requiere un access request aprobado y vigente de tipo create o both.
func createPatientRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can write patient records", http.StatusForbidden)
			return
		}

		patientID := chi.URLParam(r, "patientID")

		in, httpErr := decodeCreateRecord(r)
		if httpErr != "" {
			http.Error(w, httpErr, http.StatusBadRequest)
			return
		}

		rec, err := svc.CreateByDoctor(r.Context(), claims.UserID, patientID, in)
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

func decodeCreateRecord(r *http.Request) (CreateInput, string) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return CreateInput{}, "invalid json"
	}

	var recordDate time.Time
	if strings.TrimSpace(req.RecordDate) != "" {
		t, err := time.Parse("2006-01-02", req.RecordDate)
		if err != nil {
			return CreateInput{}, "record_date must be YYYY-MM-DD"
		}
		recordDate = t
	}

	return CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		Notes:        req.Notes,
		RecordDate:   recordDate,
	}, ""
}

func writeRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound):
		// No confirmar existencia del paciente a quien no tiene acceso.
		http.Error(w, "patient not found or not authorized", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:           rec.ID,
		PatientID:    rec.PatientID,
		DoctorID:     rec.DoctorID,
		Title:        rec.Title,
		Description:  rec.Description,
		Diagnosis:    rec.Diagnosis,
		Prescription: rec.Prescription,
		Notes:        rec.Notes,
		RecordDate:   rec.RecordDate,
		CreatedAt:    rec.CreatedAt,
	}
}

func toRecordResponses(items []Record) []recordResponse {
	out := make([]recordResponse, 0, len(items))
	for _, rec := range items {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
