package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"medical-record-access/internal/domain/patients"
)

var (
	ErrNotFound = errors.New("not found")
)

type patientRepo struct {
	mu   sync.RWMutex
	byID map[string]patients.Profile
}

func NewPatientRepo() patients.Repository {
	return &patientRepo{
		byID: make(map[string]patients.Profile),
	}
}

func (r *patientRepo) Create(ctx context.Context, p patients.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("profile id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("profile already exists")
	}
	for _, existing := range r.byID {
		if existing.UserID == p.UserID {
			return errors.New("user already has a profile")
		}
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) Update(ctx context.Context, p patients.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (patients.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *patientRepo) GetByUserID(ctx context.Context, userID string) (patients.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if p.UserID == userID {
			return p, nil
		}
	}
	return patients.Profile{}, ErrNotFound
}
