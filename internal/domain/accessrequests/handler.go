package accessrequests

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

// PatientRefLookup evita importar el paquete patients (rompe ciclos).
type PatientRefLookup interface {
	RefOf(ctx context.Context, userID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patientRefs PatientRefLookup) {
	r.Route("/access-requests", func(ar chi.Router) {
		ar.Post("/", createRequestHandler(svc, patientRefs))
		ar.Get("/", listMyRequestsHandler(svc, patientRefs))
		ar.Post("/{requestID}/respond", respondRequestHandler(svc, patientRefs))
		ar.Delete("/{requestID}", cancelRequestHandler(svc))
	})
}

type createRequest struct {
	PatientID   string      `json:"patient_id"`
	RequestType RequestType `json:"request_type" enums:"view,create,both"`
	Reason      string      `json:"reason"`
	// Horas; admite fracciones (0.5 = 30 min). Default 48.
	DurationHours float64 `json:"duration_hours"`
}

type respondRequest struct {
	Action              Action   `json:"action" enums:"approve,deny"`
	CustomDurationHours *float64 `json:"custom_duration_hours,omitempty"`
}

type requestResponse struct {
	ID             string      `json:"id"`
	DoctorID       string      `json:"doctor_id"`
	PatientID      string      `json:"patient_id"`
	RequestType    RequestType `json:"request_type"`
	Status         Status      `json:"status"`
	Reason         string      `json:"reason"`
	RequestedHours float64     `json:"requested_duration_hours"`
	ApprovedHours  *float64    `json:"approved_duration_hours,omitempty"`
	ExpiresAt      time.Time   `json:"expires_at"`
	RespondedAt    *time.Time  `json:"responded_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// createRequestHandler godoc
// @Summary Crear solicitud de acceso
// @Description Un médico pide acceso temporal al historial de un paciente. Solo puede existir una solicitud activa por par (médico, paciente). Autenticación: `X-Debug-User-ID` + `X-Debug-Role` (dev) o Bearer token (prod).
// @Tags access-requests
// @Accept json
// @Produce json
// @Param payload body createRequest true "patient_id, request_type (view|create|both), reason, duration_hours en [0.5, 720]"
// @Success 201 {object} requestResponse
// @Failure 400 {string} string "invalid json / duración fuera de rango"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "solo médicos"
// @Failure 409 {object} requestResponse "ya hay una solicitud activa"
// @Router /access-requests [post]
func createRequestHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can create access requests", http.StatusForbidden)
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		out, err := svc.Create(r.Context(), CreateInput{
			DoctorID:      claims.UserID,
			PatientID:     req.PatientID,
			RequestType:   req.RequestType,
			Reason:        req.Reason,
			DurationHours: req.DurationHours,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrConflict):
				// Devolvemos la solicitud que bloquea para que el médico
				// sepa qué acceso tiene ya (o qué sigue pendiente).
				writeJSON(w, http.StatusConflict, toRequestResponse(out))
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toRequestResponse(out))
	}
}

// listMyRequestsHandler godoc
// @Summary Listar mis solicitudes
// @Description Médico: solicitudes que creó. Paciente: solicitudes sobre su historial. El listado aplica la expiración perezosa.
// @Tags access-requests
// @Produce json
// @Success 200 {array} requestResponse
// @Failure 401 {string} string "unauthorized"
// @Router /access-requests [get]
func listMyRequestsHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var (
			items []AccessRequest
			err   error
		)
		switch claims.Role {
		case auth.RoleDoctor:
			items, err = svc.ListByDoctor(r.Context(), claims.UserID)
		case auth.RolePatient:
			patientID, lerr := patientRefs.RefOf(r.Context(), claims.UserID)
			if lerr != nil {
				// Sin perfil todavía: no hay solicitudes que mostrar.
				writeJSON(w, http.StatusOK, []requestResponse{})
				return
			}
			items, err = svc.ListByPatient(r.Context(), patientID)
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]requestResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toRequestResponse(it))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// respondRequestHandler godoc
// @Summary Responder una solicitud
// @Description El paciente aprueba o deniega. Al aprobar puede fijar una duración distinta a la pedida; el vencimiento se recalcula desde ahora.
// @Tags access-requests
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body respondRequest true "action approve|deny; custom_duration_hours opcional en [0.5, 720]"
// @Success 200 {object} requestResponse
// @Failure 400 {string} string "invalid json / acción o duración inválida"
// @Failure 403 {string} string "la solicitud no es sobre tu historial"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "ya respondida"
// @Failure 410 {string} string "expirada"
// @Router /access-requests/{requestID}/respond [post]
func respondRequestHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can respond to access requests", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "patient profile not found", http.StatusNotFound)
			return
		}

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		requestID := chi.URLParam(r, "requestID")
		out, err := svc.Respond(r.Context(), requestID, patientID, req.Action, req.CustomDurationHours)
		if err != nil {
			writeRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(out))
	}
}

// cancelRequestHandler godoc
// @Summary Cancelar una solicitud propia
// @Description El médico retira su solicitud mientras sigue pending (borrado suave). Aprobadas/denegadas/expiradas no se cancelan.
// @Tags access-requests
// @Param requestID path string true "ID de la solicitud"
// @Success 204 {string} string ""
// @Failure 403 {string} string "no es tu solicitud"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "ya no está pending"
// @Router /access-requests/{requestID} [delete]
func cancelRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can cancel access requests", http.StatusForbidden)
			return
		}

		requestID := chi.URLParam(r, "requestID")
		if err := svc.Cancel(r.Context(), requestID, claims.UserID); err != nil {
			writeRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		// No confirmamos existencia a quien no es dueño.
		http.Error(w, "not found or not authorized", http.StatusNotFound)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found or not authorized", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, "request already responded", http.StatusConflict)
	case errors.Is(err, ErrExpired):
		http.Error(w, "request expired", http.StatusGone)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRequestResponse(r AccessRequest) requestResponse {
	return requestResponse{
		ID:             r.ID,
		DoctorID:       r.DoctorID,
		PatientID:      r.PatientID,
		RequestType:    r.RequestType,
		Status:         r.Status,
		Reason:         r.Reason,
		RequestedHours: r.RequestedHours,
		ApprovedHours:  r.ApprovedHours,
		ExpiresAt:      r.ExpiresAt,
		RespondedAt:    r.RespondedAt,
		CreatedAt:      r.CreatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
