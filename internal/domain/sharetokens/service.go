package sharetokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	"medical-record-access/internal/domain/disclosure"
	"medical-record-access/internal/domain/patients"
	"medical-record-access/internal/domain/records"
	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrExpired      = errors.New("token expired")
	ErrLimitReached = errors.New("token usage limit reached")
)

// rawTokenBytes da 256 bits de aleatoriedad al token crudo.
const rawTokenBytes = 32

// ProfileSource y RecordSource evitan importar los services de patients y
// records directamente en el router wiring; los implementan esos services.
type ProfileSource interface {
	ProfileByID(ctx context.Context, patientID string) (patients.Profile, error)
}

type RecordSource interface {
	RecordsForShare(ctx context.Context, patientID string) ([]records.Record, error)
}

type Service struct {
	repo     Repository
	profiles ProfileSource
	records  RecordSource
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, profiles ProfileSource, recs RecordSource, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		records:  recs,
		log:      log,
		now:      time.Now,
	}
}

type IssueInput struct {
	PatientID string
	// Duration admite "7d", "24h", "N days", "N hours" o un número de horas;
	// inválido o vacío cae a 7 días.
	Duration        string
	AccessScope     string
	UsageLimit      *int
	SharedWithEmail string
}

type Issued struct {
	// RawToken se entrega aquí y solo aquí; después es irrecuperable.
	RawToken string
	Token    ShareToken
}

// Issue emite un token portador para el historial del paciente.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Issued, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return Issued{}, ErrInvalidInput
	}

	scope, err := disclosure.ParseScope(in.AccessScope)
	if err != nil {
		return Issued{}, ErrInvalidInput
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return Issued{}, ErrInvalidInput
	}

	raw := make([]byte, rawTokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return Issued{}, err
	}
	rawToken := hex.EncodeToString(raw)

	now := s.now()

	t := ShareToken{
		ID:              uuid.NewString(),
		PatientID:       patientID,
		TokenHash:       fieldcrypto.Hash(rawToken),
		AccessScope:     scope,
		ExpiresAt:       now.Add(parseDurationSpec(in.Duration)),
		UsageLimit:      in.UsageLimit,
		SharedWithEmail: strings.TrimSpace(in.SharedWithEmail),
		IsActive:        true,
		CreatedAt:       now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return Issued{}, err
	}

	// Solo el prefijo del hash en logs; el crudo jamás.
	s.log.Info("share token issued", map[string]any{
		"token_id":    t.ID,
		"patient_id":  patientID,
		"scope":       string(scope),
		"expires_at":  t.ExpiresAt,
		"hash_prefix": t.TokenHash[:8],
	})

	return Issued{RawToken: rawToken, Token: t}, nil
}

// Access es lo que ve quien presenta un token válido: perfil e historial
// ya filtrados por el scope del token.
type Access struct {
	Token ShareToken
	View  disclosure.View
}

// VerifyAndConsume valida el token crudo, consume un uso de forma atómica y
// proyecta los datos del paciente con el Scope Projector. Bajo concurrencia,
// un token con límite N produce a lo sumo N accesos exitosos.
func (s *Service) VerifyAndConsume(ctx context.Context, rawToken string) (Access, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Access{}, ErrNotFound
	}

	now := s.now()

	t, err := s.repo.Consume(ctx, fieldcrypto.Hash(rawToken), now)
	if err != nil {
		switch {
		case errors.Is(err, ErrRepoNotFound):
			return Access{}, ErrNotFound
		case errors.Is(err, ErrRepoExpired):
			return Access{}, ErrExpired
		case errors.Is(err, ErrRepoExhausted):
			return Access{}, ErrLimitReached
		}
		return Access{}, err
	}

	profile, err := s.profiles.ProfileByID(ctx, t.PatientID)
	if err != nil {
		return Access{}, err
	}

	var recs []records.Record
	// El projector descarta el historial fuera de full/records_only; no lo
	// cargamos si el scope no lo va a divulgar.
	if t.AccessScope == disclosure.ScopeFull || t.AccessScope == disclosure.ScopeRecordsOnly {
		recs, err = s.records.RecordsForShare(ctx, t.PatientID)
		if err != nil {
			return Access{}, err
		}
	}

	s.log.Info("share token consumed", map[string]any{
		"token_id":    t.ID,
		"patient_id":  t.PatientID,
		"usage_count": t.UsageCount,
		"hash_prefix": t.TokenHash[:8],
	})

	return Access{
		Token: t,
		View:  disclosure.Project(t.AccessScope, profile, recs),
	}, nil
}

// Revoke apaga un token propio; idempotente.
func (s *Service) Revoke(ctx context.Context, tokenID, patientID string) error {
	tokenID = strings.TrimSpace(tokenID)
	patientID = strings.TrimSpace(patientID)
	if tokenID == "" || patientID == "" {
		return ErrInvalidInput
	}

	t, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return ErrNotFound
	}
	if t.PatientID != patientID {
		return ErrForbidden
	}
	return s.repo.Deactivate(ctx, tokenID)
}

// ListActive devuelve los tokens vigentes del paciente (solo metadata; el
// token crudo no existe más).
func (s *Service) ListActive(ctx context.Context, patientID string) ([]ShareToken, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListActive(ctx, patientID, s.now())
}

// DeactivateExpired es el barrido consultivo; cada verificación reverifica
// expiración por su cuenta.
func (s *Service) DeactivateExpired(ctx context.Context) (int, error) {
	return s.repo.DeactivateExpired(ctx, s.now())
}
