package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"medical-record-access/internal/domain/accessrequests"
)

type accessRequestRepo struct {
	mu   sync.Mutex
	byID map[string]accessrequests.AccessRequest
}

func NewAccessRequestRepo() accessrequests.Repository {
	return &accessRequestRepo{
		byID: make(map[string]accessrequests.AccessRequest),
	}
}

// Create verifica unicidad-activa e inserta bajo el mismo lock: es la unidad
// atómica que el servicio necesita para no crear duplicados bajo carrera.
func (r *accessRequestRepo) Create(ctx context.Context, req accessrequests.AccessRequest, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(req.ID) == "" {
		return errors.New("request id required")
	}
	if _, exists := r.byID[req.ID]; exists {
		return errors.New("request already exists")
	}
	for _, existing := range r.byID {
		if existing.DoctorID == req.DoctorID && existing.PatientID == req.PatientID && existing.Active(now) {
			return accessrequests.ErrDuplicateActive
		}
	}
	r.byID[req.ID] = req
	return nil
}

func (r *accessRequestRepo) Update(ctx context.Context, req accessrequests.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.byID[req.ID]
	if !exists || current.DeletedAt != nil {
		return accessrequests.ErrRepoNotFound
	}
	r.byID[req.ID] = req
	return nil
}

func (r *accessRequestRepo) GetByID(ctx context.Context, id string) (accessrequests.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok || req.DeletedAt != nil {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}
	return req, nil
}

func (r *accessRequestRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok || req.DeletedAt != nil {
		return accessrequests.ErrRepoNotFound
	}
	req.DeletedAt = &now
	req.UpdatedAt = now
	r.byID[id] = req
	return nil
}

func (r *accessRequestRepo) GetActive(ctx context.Context, doctorID, patientID string, now time.Time) (accessrequests.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.byID {
		if req.DoctorID == doctorID && req.PatientID == patientID && req.Active(now) {
			return req, nil
		}
	}
	return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
}

func (r *accessRequestRepo) ListByDoctor(ctx context.Context, doctorID string) ([]accessrequests.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]accessrequests.AccessRequest, 0)
	for _, req := range r.byID {
		if req.DoctorID == doctorID && req.DeletedAt == nil {
			out = append(out, req)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *accessRequestRepo) ListByPatient(ctx context.Context, patientID string) ([]accessrequests.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]accessrequests.AccessRequest, 0)
	for _, req := range r.byID {
		if req.PatientID == patientID && req.DeletedAt == nil {
			out = append(out, req)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *accessRequestRepo) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, req := range r.byID {
		if req.DeletedAt != nil {
			continue
		}
		if req.Status != accessrequests.StatusPending && req.Status != accessrequests.StatusApproved {
			continue
		}
		if req.Expired(now) {
			req.Status = accessrequests.StatusExpired
			req.UpdatedAt = now
			r.byID[id] = req
			n++
		}
	}
	return n, nil
}

func sortByCreatedDesc(items []accessrequests.AccessRequest) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
