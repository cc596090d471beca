package sharetokens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medical-record-access/internal/domain/disclosure"
	"medical-record-access/internal/domain/records"
	"medical-record-access/internal/middleware"
	"medical-record-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// PatientRefLookup evita importar el paquete patients (rompe ciclos).
type PatientRefLookup interface {
	RefOf(ctx context.Context, userID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patientRefs PatientRefLookup, shareBaseURL string) {
	r.Route("/share", func(sr chi.Router) {
		sr.Post("/tokens", issueTokenHandler(svc, patientRefs, shareBaseURL))
		sr.Get("/tokens", listTokensHandler(svc, patientRefs))
		sr.Delete("/tokens/{tokenID}", revokeTokenHandler(svc, patientRefs))

		// Acceso público por token portador; sin autenticación.
		sr.Get("/view/{token}", viewByTokenHandler(svc))
	})
}

type issueTokenRequest struct {
	// Duration: "7d", "24h", "N days", "N hours" o número de horas.
	Duration        string `json:"duration"`
	AccessScope     string `json:"access_scope" enums:"full,basic,records_only,allergies_only"`
	UsageLimit      *int   `json:"usage_limit,omitempty"`
	SharedWithEmail string `json:"shared_with_email,omitempty"`
	IncludeQR       bool   `json:"include_qr,omitempty"`
}

type issueTokenResponse struct {
	ID string `json:"id"`
	// RawToken se devuelve una sola vez; no es recuperable después.
	RawToken    string           `json:"raw_token"`
	ShareURL    string           `json:"share_url"`
	QRDataURL   string           `json:"qr_data_url,omitempty"`
	AccessScope disclosure.Scope `json:"access_scope"`
	ExpiresAt   time.Time        `json:"expires_at"`
	UsageLimit  *int             `json:"usage_limit,omitempty"`
}

type tokenMetadataResponse struct {
	ID              string           `json:"id"`
	AccessScope     disclosure.Scope `json:"access_scope"`
	ExpiresAt       time.Time        `json:"expires_at"`
	UsageLimit      *int             `json:"usage_limit,omitempty"`
	UsageCount      int              `json:"usage_count"`
	SharedWithEmail string           `json:"shared_with_email,omitempty"`
	LastAccessedAt  *time.Time       `json:"last_accessed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type viewTokenResponse struct {
	AccessScope disclosure.Scope       `json:"access_scope"`
	ExpiresAt   time.Time              `json:"expires_at"`
	UsageCount  int                    `json:"usage_count"`
	UsageLimit  *int                   `json:"usage_limit,omitempty"`
	Patient     disclosure.ProfileView `json:"patient"`
	Records     []sharedRecordResponse `json:"records"`
}

// sharedRecordResponse serializa los records de la vista pública con las
// mismas claves snake_case que el resto de la API.
type sharedRecordResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	RecordDate   time.Time `json:"record_date"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSharedRecordResponses(items []records.Record) []sharedRecordResponse {
	out := make([]sharedRecordResponse, 0, len(items))
	for _, rec := range items {
		out = append(out, sharedRecordResponse{
			ID:           rec.ID,
			Title:        rec.Title,
			Description:  rec.Description,
			Diagnosis:    rec.Diagnosis,
			Prescription: rec.Prescription,
			Notes:        rec.Notes,
			RecordDate:   rec.RecordDate,
			CreatedAt:    rec.CreatedAt,
		})
	}
	return out
}

// issueTokenHandler godoc
// @Summary Emitir share token
// @Description El paciente genera un enlace portador con scope, vigencia y límite de usos. El token crudo se devuelve UNA vez; opcionalmente también como QR.
// @Tags share
// @Accept json
// @Produce json
// @Param payload body issueTokenRequest true "duration, access_scope, usage_limit, shared_with_email, include_qr"
// @Success 201 {object} issueTokenResponse
// @Failure 400 {string} string "scope inválido / usage_limit < 1"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "solo pacientes"
// @Router /share/tokens [post]
func issueTokenHandler(svc *Service, patientRefs PatientRefLookup, shareBaseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can generate share tokens", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "complete your patient profile before sharing", http.StatusForbidden)
			return
		}

		var req issueTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		issued, err := svc.Issue(r.Context(), IssueInput{
			PatientID:       patientID,
			Duration:        req.Duration,
			AccessScope:     req.AccessScope,
			UsageLimit:      req.UsageLimit,
			SharedWithEmail: req.SharedWithEmail,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		shareURL := strings.TrimRight(shareBaseURL, "/") + "/share/view/" + issued.RawToken

		resp := issueTokenResponse{
			ID:          issued.Token.ID,
			RawToken:    issued.RawToken,
			ShareURL:    shareURL,
			AccessScope: issued.Token.AccessScope,
			ExpiresAt:   issued.Token.ExpiresAt,
			UsageLimit:  issued.Token.UsageLimit,
		}
		if req.IncludeQR {
			qr, err := QRDataURL(shareURL)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			resp.QRDataURL = qr
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

// listTokensHandler godoc
// @Summary Listar tokens vigentes
// @Description Tokens activos y sin expirar del paciente. Solo metadata: el token crudo no existe más.
// @Tags share
// @Produce json
// @Success 200 {array} tokenMetadataResponse
// @Failure 401 {string} string "unauthorized"
// @Router /share/tokens [get]
func listTokensHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "patient profile not found", http.StatusNotFound)
			return
		}

		items, err := svc.ListActive(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]tokenMetadataResponse, 0, len(items))
		for _, t := range items {
			out = append(out, tokenMetadataResponse{
				ID:              t.ID,
				AccessScope:     t.AccessScope,
				ExpiresAt:       t.ExpiresAt,
				UsageLimit:      t.UsageLimit,
				UsageCount:      t.UsageCount,
				SharedWithEmail: t.SharedWithEmail,
				LastAccessedAt:  t.LastAccessedAt,
				CreatedAt:       t.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// revokeTokenHandler godoc
// @Summary Revocar un token
// @Description Apaga un token propio. Idempotente. Revocar y reemitir es el único camino para cambiar scope o vigencia.
// @Tags share
// @Param tokenID path string true "ID del token"
// @Success 204 {string} string ""
// @Failure 404 {string} string "token ajeno o inexistente"
// @Router /share/tokens/{tokenID} [delete]
func revokeTokenHandler(svc *Service, patientRefs PatientRefLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		patientID, err := patientRefs.RefOf(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "patient profile not found", http.StatusNotFound)
			return
		}

		tokenID := chi.URLParam(r, "tokenID")
		if err := svc.Revoke(r.Context(), tokenID, patientID); err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound):
				// No confirmamos existencia de tokens ajenos.
				http.Error(w, "token not found or unauthorized", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// viewByTokenHandler godoc
// @Summary Acceso público vía token
// @Description Quien posee el token crudo ve el perfil y el historial filtrados por el scope del token. Cada acceso exitoso consume un uso.
// @Tags share
// @Produce json
// @Param token path string true "Token crudo"
// @Success 200 {object} viewTokenResponse
// @Failure 404 {string} string "token inválido"
// @Failure 410 {string} string "token expirado"
// @Failure 429 {string} string "usos agotados o token revocado"
// @Router /share/view/{token} [get]
func viewByTokenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := chi.URLParam(r, "token")

		access, err := svc.VerifyAndConsume(r.Context(), rawToken)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "invalid or expired share token", http.StatusNotFound)
			case errors.Is(err, ErrExpired):
				http.Error(w, "share token expired", http.StatusGone)
			case errors.Is(err, ErrLimitReached):
				http.Error(w, "share token usage limit reached", http.StatusTooManyRequests)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, viewTokenResponse{
			AccessScope: access.Token.AccessScope,
			ExpiresAt:   access.Token.ExpiresAt,
			UsageCount:  access.Token.UsageCount,
			UsageLimit:  access.Token.UsageLimit,
			Patient:     access.View.Profile,
			Records:     toSharedRecordResponses(access.View.Records),
		})
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
