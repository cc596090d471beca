package accessrequests

import (
	"context"
	"errors"
	"strings"
	"time"

	"medical-record-access/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("request expired")
)

// Action es la respuesta del paciente a una solicitud.
// @Enum approve, deny
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

// Notifier envía avisos por email al otro extremo de la solicitud.
// Best-effort: un fallo se loguea y nunca tumba la operación.
type Notifier interface {
	RequestCreated(ctx context.Context, r AccessRequest) error
	RequestApproved(ctx context.Context, r AccessRequest) error
	RequestDenied(ctx context.Context, r AccessRequest) error
}

type Service struct {
	repo   Repository
	notify Notifier // puede ser nil
	log    logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, notify Notifier, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		notify: notify,
		log:    log,
		now:    time.Now,
	}
}

type CreateInput struct {
	DoctorID    string
	PatientID   string
	RequestType RequestType
	Reason      string
	// DurationHours en [0.5, 720]; 0 aplica el default de 48h.
	DurationHours float64
}

// Create registra una solicitud pending. Si ya existe una activa para el par
// (médico, paciente) devuelve la existente junto con ErrConflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (AccessRequest, error) {
	doctorID := strings.TrimSpace(in.DoctorID)
	patientID := strings.TrimSpace(in.PatientID)
	if doctorID == "" || patientID == "" {
		return AccessRequest{}, ErrInvalidInput
	}

	reqType := in.RequestType
	if reqType == "" {
		reqType = TypeView
	}
	if !validRequestType(reqType) {
		return AccessRequest{}, ErrInvalidInput
	}

	hours := in.DurationHours
	if hours == 0 {
		hours = DefaultDurationHours
	}
	// Fuera de rango es error de validación, nunca se recorta en silencio.
	if !validDurationHours(hours) {
		return AccessRequest{}, ErrInvalidInput
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Medical consultation"
	}

	now := s.now()

	// Conflicto amistoso primero: devolvemos la solicitud que bloquea.
	if existing, err := s.repo.GetActive(ctx, doctorID, patientID, now); err == nil {
		return existing, ErrConflict
	}

	r := AccessRequest{
		ID:             uuid.NewString(),
		DoctorID:       doctorID,
		PatientID:      patientID,
		RequestType:    reqType,
		Status:         StatusPending,
		Reason:         reason,
		RequestedHours: hours,
		ExpiresAt:      now.Add(durationFromHours(hours)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, r, now); err != nil {
		if errors.Is(err, ErrDuplicateActive) {
			// Carrera con otro create simultáneo: el repo garantiza que solo
			// uno gana. Recuperamos al ganador si podemos.
			if existing, gerr := s.repo.GetActive(ctx, doctorID, patientID, now); gerr == nil {
				return existing, ErrConflict
			}
			return AccessRequest{}, ErrConflict
		}
		return AccessRequest{}, err
	}

	s.sendNotification(ctx, "request created", r, func(n Notifier) error {
		return n.RequestCreated(ctx, r)
	})
	return r, nil
}

// Respond aprueba o deniega una solicitud pending. Al aprobar, la cuenta
// regresiva arranca de cero: expiresAt = now + (custom ?? pedida), nunca se
// hereda el vencimiento original ("te doy 24 horas desde AHORA").
func (s *Service) Respond(ctx context.Context, requestID, patientID string, action Action, customHours *float64) (AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	patientID = strings.TrimSpace(patientID)
	if requestID == "" || patientID == "" {
		return AccessRequest{}, ErrInvalidInput
	}
	if action != ActionApprove && action != ActionDeny {
		return AccessRequest{}, ErrInvalidInput
	}
	// La duración personalizada se acota con la misma política [0.5, 720]
	// que la pedida, sin techo adicional ligado a la solicitud.
	if customHours != nil && !validDurationHours(*customHours) {
		return AccessRequest{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return AccessRequest{}, ErrNotFound
	}
	if r.PatientID != patientID {
		return AccessRequest{}, ErrForbidden
	}
	if r.Status != StatusPending {
		return AccessRequest{}, ErrConflict
	}

	now := s.now()

	// Expiración perezosa: detectar caducidad transiciona el estado.
	if r.Expired(now) {
		r.Status = StatusExpired
		r.UpdatedAt = now
		if uerr := s.repo.Update(ctx, r); uerr != nil {
			return AccessRequest{}, uerr
		}
		return AccessRequest{}, ErrExpired
	}

	r.RespondedAt = &now
	r.UpdatedAt = now

	if action == ActionApprove {
		hours := r.RequestedHours
		if customHours != nil {
			hours = *customHours
		}
		r.Status = StatusApproved
		r.ApprovedHours = &hours
		r.ExpiresAt = now.Add(durationFromHours(hours))
	} else {
		// Denegada queda inerte; el vencimiento no importa más.
		r.Status = StatusDenied
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return AccessRequest{}, err
	}

	if action == ActionApprove {
		s.sendNotification(ctx, "request approved", r, func(n Notifier) error {
			return n.RequestApproved(ctx, r)
		})
	} else {
		s.sendNotification(ctx, "request denied", r, func(n Notifier) error {
			return n.RequestDenied(ctx, r)
		})
	}
	return r, nil
}

// Cancel retira una solicitud propia aún pending (borrado suave).
// Aprobadas, denegadas o expiradas no se cancelan.
func (s *Service) Cancel(ctx context.Context, requestID, doctorID string) error {
	requestID = strings.TrimSpace(requestID)
	doctorID = strings.TrimSpace(doctorID)
	if requestID == "" || doctorID == "" {
		return ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return ErrNotFound
	}
	if r.DoctorID != doctorID {
		return ErrForbidden
	}
	if r.Status != StatusPending {
		return ErrConflict
	}

	now := s.now()
	if r.Expired(now) {
		r.Status = StatusExpired
		r.UpdatedAt = now
		if uerr := s.repo.Update(ctx, r); uerr != nil {
			return uerr
		}
		return ErrExpired
	}

	return s.repo.SoftDelete(ctx, requestID, now)
}

// HasAccess es la ÚNICA puerta de autorización para lecturas/escrituras de
// historial hechas por un médico. Se evalúa por operación con una sola
// lectura de reloj; nunca se cachea entre requests.
func (s *Service) HasAccess(ctx context.Context, doctorID, patientID string, want RequestType) (bool, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	if doctorID == "" || patientID == "" {
		return false, nil
	}
	if want != TypeView && want != TypeCreate {
		return false, nil
	}

	now := s.now()
	r, err := s.repo.GetActive(ctx, doctorID, patientID, now)
	switch {
	case errors.Is(err, ErrRepoNotFound):
		return false, nil
	case err != nil:
		// Cerrado por defecto también ante fallas de storage, pero con
		// rastro: una base caída no es una negación.
		s.log.Error("active request lookup failed", map[string]any{
			"doctor_id":  doctorID,
			"patient_id": patientID,
			"error":      err.Error(),
		})
		return false, nil
	}
	return r.Status == StatusApproved && !r.Expired(now) && r.RequestType.Covers(want), nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]AccessRequest, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.refreshExpiry(ctx, items), nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]AccessRequest, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.refreshExpiry(ctx, items), nil
}

// ExpireStale es el barrido consultivo: pasa a expired lo vencido.
// No es dependencia de corrección; cada lectura reverifica por su cuenta.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	return s.repo.ExpireStale(ctx, s.now())
}

// refreshExpiry aplica la transición perezosa a expired en los listados.
// La persistencia del flip es best-effort; la vista devuelta ya va corregida.
func (s *Service) refreshExpiry(ctx context.Context, items []AccessRequest) []AccessRequest {
	now := s.now()
	out := make([]AccessRequest, 0, len(items))
	for _, r := range items {
		if (r.Status == StatusPending || r.Status == StatusApproved) && r.Expired(now) {
			r.Status = StatusExpired
			r.UpdatedAt = now
			_ = s.repo.Update(ctx, r)
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) sendNotification(ctx context.Context, event string, r AccessRequest, send func(Notifier) error) {
	if s.notify == nil {
		return
	}
	if err := send(s.notify); err != nil {
		s.log.Warn("notification failed", map[string]any{
			"event":      event,
			"request_id": r.ID,
			"error":      err.Error(),
		})
	}
}

func durationFromHours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
