package patients

import (
	"context"
	"errors"
	"strings"
	"time"

	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo   Repository
	cipher *fieldcrypto.Cipher
	log    logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, cipher *fieldcrypto.Cipher, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		cipher: cipher,
		log:    log,
		now:    time.Now,
	}
}

type UpsertInput struct {
	FullName    string
	DateOfBirth *time.Time
	BloodGroup  BloodGroup

	Allergies string

	EmergencyContactName   string
	EmergencyContactNumber string
}

// Upsert crea o actualiza el perfil del usuario autenticado.
func (s *Service) Upsert(ctx context.Context, userID string, in UpsertInput) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrInvalidInput
	}
	if in.BloodGroup != "" && !validBloodGroup(in.BloodGroup) {
		return Profile{}, ErrInvalidInput
	}

	now := s.now()

	existing, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		existing.FullName = strings.TrimSpace(in.FullName)
		existing.DateOfBirth = in.DateOfBirth
		existing.BloodGroup = in.BloodGroup
		existing.Allergies = in.Allergies
		existing.EmergencyContactName = strings.TrimSpace(in.EmergencyContactName)
		existing.EmergencyContactNumber = strings.TrimSpace(in.EmergencyContactNumber)
		existing.UpdatedAt = now

		sealed, err := s.seal(existing)
		if err != nil {
			return Profile{}, err
		}
		if err := s.repo.Update(ctx, sealed); err != nil {
			return Profile{}, err
		}
		return existing, nil
	}

	p := Profile{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		FullName:               strings.TrimSpace(in.FullName),
		DateOfBirth:            in.DateOfBirth,
		BloodGroup:             in.BloodGroup,
		Allergies:              in.Allergies,
		EmergencyContactName:   strings.TrimSpace(in.EmergencyContactName),
		EmergencyContactNumber: strings.TrimSpace(in.EmergencyContactNumber),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	sealed, err := s.seal(p)
	if err != nil {
		return Profile{}, err
	}
	if err := s.repo.Create(ctx, sealed); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	return s.open(p), nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrInvalidInput
	}
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	return s.open(p), nil
}

// ProfileByID expone el perfil descifrado para otros módulos (sharetokens)
// sin acoplarlos al repositorio.
func (s *Service) ProfileByID(ctx context.Context, patientID string) (Profile, error) {
	return s.GetByID(ctx, patientID)
}

// seal cifra los campos sensibles antes de persistir.
func (s *Service) seal(p Profile) (Profile, error) {
	enc, err := s.cipher.Encrypt(p.Allergies)
	if err != nil {
		return Profile{}, err
	}
	p.Allergies = enc
	return p, nil
}

// open descifra al leer. Un blob corrupto degrada el campo a vacío y se
// loguea; nunca tumba la lectura completa del perfil.
func (s *Service) open(p Profile) Profile {
	plain, err := s.cipher.Decrypt(p.Allergies)
	if err != nil {
		s.log.Error("failed to decrypt field", map[string]any{
			"field":      "allergies",
			"patient_id": p.ID,
			"error":      err.Error(),
		})
		plain = ""
	}
	p.Allergies = plain
	return p
}

func validBloodGroup(bg BloodGroup) bool {
	switch bg {
	case BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg:
		return true
	}
	return false
}
