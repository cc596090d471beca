package records

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
	ErrForbidden    = errors.New("forbidden")
)

// AccessType es el tipo de acceso que un médico necesita sobre un paciente.
type AccessType string

const (
	AccessView   AccessType = "view"
	AccessCreate AccessType = "create"
)

// GrantChecker evita importar el paquete accessrequests (rompe ciclos).
// Se evalúa en CADA operación: los permisos son temporales y deben caducar
// exactamente en su expiresAt, nunca se cachean.
type GrantChecker interface {
	HasAccess(ctx context.Context, doctorID, patientID string, want AccessType) (bool, error)
}

type Service struct {
	repo   Repository
	grants GrantChecker
	codec  codec
	now    func() time.Time
}

func NewService(repo Repository, grants GrantChecker, cipher *fieldcrypto.Cipher, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		grants: grants,
		codec:  codec{cipher: cipher, log: log},
		now:    time.Now,
	}
}

type CreateInput struct {
	Title        string
	Description  string
	Diagnosis    string
	Prescription string
	Notes        string
	RecordDate   time.Time
}

// CreateByPatient registra una entrada en el historial propio del paciente.
func (s *Service) CreateByPatient(ctx context.Context, patientID string, in CreateInput) (Record, error) {
	return s.create(ctx, patientID, "", in)
}

// CreateByDoctor exige un grant aprobado y vigente con acceso "create".
func (s *Service) CreateByDoctor(ctx context.Context, doctorID, patientID string, in CreateInput) (Record, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return Record{}, ErrInvalidInput
	}

	ok, err := s.grants.HasAccess(ctx, doctorID, patientID, AccessCreate)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrForbidden
	}

	return s.create(ctx, patientID, doctorID, in)
}

func (s *Service) create(ctx context.Context, patientID, doctorID string, in CreateInput) (Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Record{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Title) == "" {
		return Record{}, ErrInvalidInput
	}

	now := s.now()

	recordDate := in.RecordDate
	if recordDate.IsZero() {
		recordDate = now
	}

	r := Record{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		DoctorID:     doctorID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Diagnosis:    in.Diagnosis,
		Prescription: in.Prescription,
		Notes:        in.Notes,
		RecordDate:   recordDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sealed, err := s.codec.Seal(r)
	if err != nil {
		return Record{}, err
	}
	if err := s.repo.Create(ctx, sealed); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ListForPatient devuelve el historial propio, descifrado.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.list(ctx, patientID)
}

// ListForDoctor exige un grant aprobado y vigente con acceso "view".
// La verificación se repite por llamada aunque el médico haya creado los
// registros: sin permiso del paciente no hay lectura.
func (s *Service) ListForDoctor(ctx context.Context, doctorID, patientID string) ([]Record, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	if doctorID == "" || patientID == "" {
		return nil, ErrInvalidInput
	}

	ok, err := s.grants.HasAccess(ctx, doctorID, patientID, AccessView)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	return s.list(ctx, patientID)
}

// RecordsForShare expone el historial descifrado para el módulo de share
// tokens; el scope del token decide después qué se divulga.
func (s *Service) RecordsForShare(ctx context.Context, patientID string) ([]Record, error) {
	return s.ListForPatient(ctx, patientID)
}

func (s *Service) list(ctx context.Context, patientID string) ([]Record, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, r := range items {
		out = append(out, s.codec.Open(r))
	}
	return out, nil
}
