package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"medical-record-access/internal/domain/sharetokens"
)

type shareTokenRepo struct {
	mu   sync.Mutex
	byID map[string]sharetokens.ShareToken
}

func NewShareTokenRepo() sharetokens.Repository {
	return &shareTokenRepo{
		byID: make(map[string]sharetokens.ShareToken),
	}
}

func (r *shareTokenRepo) Create(ctx context.Context, t sharetokens.ShareToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(t.ID) == "" {
		return errors.New("token id required")
	}
	if _, exists := r.byID[t.ID]; exists {
		return errors.New("token already exists")
	}
	r.byID[t.ID] = t
	return nil
}

func (r *shareTokenRepo) GetByID(ctx context.Context, id string) (sharetokens.ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return sharetokens.ShareToken{}, ErrNotFound
	}
	return t, nil
}

// Consume hace la verificación y el incremento bajo el mismo lock
// (compare-and-increment): con límite N nunca hay más de N éxitos.
func (r *shareTokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (sharetokens.ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.byID {
		if t.TokenHash != tokenHash {
			continue
		}
		if !t.ExpiresAt.After(now) {
			return sharetokens.ShareToken{}, sharetokens.ErrRepoExpired
		}
		if !t.IsActive {
			return sharetokens.ShareToken{}, sharetokens.ErrRepoExhausted
		}
		if t.UsageLimit != nil && t.UsageCount >= *t.UsageLimit {
			return sharetokens.ShareToken{}, sharetokens.ErrRepoExhausted
		}

		t.UsageCount++
		t.LastAccessedAt = &now
		r.byID[id] = t
		return t, nil
	}
	return sharetokens.ShareToken{}, sharetokens.ErrRepoNotFound
}

func (r *shareTokenRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.IsActive = false
	r.byID[id] = t
	return nil
}

func (r *shareTokenRepo) ListActive(ctx context.Context, patientID string, now time.Time) ([]sharetokens.ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]sharetokens.ShareToken, 0)
	for _, t := range r.byID {
		if t.PatientID == patientID && t.IsActive && t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *shareTokenRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.byID {
		if t.IsActive && !t.ExpiresAt.After(now) {
			t.IsActive = false
			r.byID[id] = t
			n++
		}
	}
	return n, nil
}
