package sharetokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medical-record-access/internal/domain/patients"
	"medical-record-access/internal/domain/records"
	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]ShareToken
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]ShareToken{}}
}

func (r *testRepo) Create(ctx context.Context, t ShareToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.TokenHash == t.TokenHash {
			return errors.New("repo: duplicate token hash")
		}
	}
	r.byID[t.ID] = t
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return ShareToken{}, ErrRepoNotFound
	}
	return t, nil
}

func (r *testRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.byID {
		if t.TokenHash != tokenHash {
			continue
		}
		if !t.ExpiresAt.After(now) {
			return ShareToken{}, ErrRepoExpired
		}
		if !t.IsActive || (t.UsageLimit != nil && t.UsageCount >= *t.UsageLimit) {
			return ShareToken{}, ErrRepoExhausted
		}
		t.UsageCount++
		t.LastAccessedAt = &now
		r.byID[id] = t
		return t, nil
	}
	return ShareToken{}, ErrRepoNotFound
}

func (r *testRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return ErrRepoNotFound
	}
	t.IsActive = false
	r.byID[id] = t
	return nil
}

func (r *testRepo) ListActive(ctx context.Context, patientID string, now time.Time) ([]ShareToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ShareToken, 0)
	for _, t := range r.byID {
		if t.PatientID == patientID && t.IsActive && t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *testRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
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

// -------------------------
// Fake sources
// -------------------------

type testSources struct{}

func (testSources) ProfileByID(ctx context.Context, patientID string) (patients.Profile, error) {
	dob := time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC)
	return patients.Profile{
		ID:                     patientID,
		FullName:               "Test Patient",
		DateOfBirth:            &dob,
		BloodGroup:             patients.BloodAPos,
		Allergies:              "latex",
		EmergencyContactName:   "Next Of Kin",
		EmergencyContactNumber: "+1 555 0100",
	}, nil
}

func (testSources) RecordsForShare(ctx context.Context, patientID string) ([]records.Record, error) {
	return []records.Record{
		{ID: "rec-1", PatientID: patientID, Title: "Visit", Diagnosis: "flu"},
	}, nil
}

func newTokenService(t *testing.T, start time.Time) (*Service, *testRepo, *time.Time) {
	t.Helper()
	repo := newTestRepo()
	svc := NewService(repo, testSources{}, testSources{}, logger.Nop{})
	clock := start
	svc.now = func() time.Time { return clock }
	return svc, repo, &clock
}

// -------------------------
// Tests
// -------------------------

func TestService_Issue_StoresHashNotRaw(t *testing.T) {
	svc, repo, _ := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))

	issued, err := svc.Issue(context.Background(), IssueInput{
		PatientID:   "pat-1",
		Duration:    "1d",
		AccessScope: "full",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if len(issued.RawToken) != rawTokenBytes*2 {
		t.Fatalf("raw token should be %d hex chars, got %d", rawTokenBytes*2, len(issued.RawToken))
	}

	stored, err := repo.GetByID(context.Background(), issued.Token.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.TokenHash == issued.RawToken {
		t.Fatalf("raw token must never be persisted")
	}
	if stored.TokenHash != fieldcrypto.Hash(issued.RawToken) {
		t.Fatalf("stored hash must be SHA-256 of the raw token")
	}
}

func TestService_Issue_Validation(t *testing.T) {
	svc, _, _ := newTokenService(t, time.Now())
	ctx := context.Background()

	if _, err := svc.Issue(ctx, IssueInput{PatientID: "pat-1", AccessScope: "everything"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown scope: expected ErrInvalidInput, got %v", err)
	}

	zero := 0
	if _, err := svc.Issue(ctx, IssueInput{PatientID: "pat-1", AccessScope: "basic", UsageLimit: &zero}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("usage limit 0: expected ErrInvalidInput, got %v", err)
	}

	// Duración inválida no es error: cae a 7 días.
	issued, err := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "whenever", AccessScope: "basic"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := issued.Token.ExpiresAt.Sub(svc.now()); got != DefaultShareDuration {
		t.Fatalf("expected default 7d expiry, got %v", got)
	}
}

func TestService_VerifyAndConsume_HappyPath(t *testing.T) {
	svc, _, _ := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	issued, err := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1h", AccessScope: "records_only"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	access, err := svc.VerifyAndConsume(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if access.Token.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", access.Token.UsageCount)
	}
	if access.Token.LastAccessedAt == nil {
		t.Fatalf("lastAccessedAt should be set on consume")
	}
	if len(access.View.Records) != 1 {
		t.Fatalf("records_only should include records")
	}
	// records_only reduce el perfil a identidad.
	if access.View.Profile.Allergies != "" || access.View.Profile.DateOfBirth != nil {
		t.Fatalf("records_only must not leak profile data")
	}
}

func TestService_VerifyAndConsume_Failures(t *testing.T) {
	svc, _, clock := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.VerifyAndConsume(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: expected ErrNotFound, got %v", err)
	}

	// Expirado.
	issued, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1h", AccessScope: "basic"})
	*clock = clock.Add(2 * time.Hour)
	if _, err := svc.VerifyAndConsume(ctx, issued.RawToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired token: expected ErrExpired, got %v", err)
	}

	// Revocado.
	issued2, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1d", AccessScope: "basic"})
	if err := svc.Revoke(ctx, issued2.Token.ID, "pat-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.VerifyAndConsume(ctx, issued2.RawToken); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("revoked token: expected ErrLimitReached, got %v", err)
	}
}

func TestService_VerifyAndConsume_UsageLimit(t *testing.T) {
	// Token de un solo uso: records_only, límite 1, 1 hora.
	svc, _, _ := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	limit := 1
	issued, err := svc.Issue(ctx, IssueInput{
		PatientID:   "pat-1",
		Duration:    "1h",
		AccessScope: "records_only",
		UsageLimit:  &limit,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.VerifyAndConsume(ctx, issued.RawToken); err != nil {
		t.Fatalf("first use should succeed: %v", err)
	}
	if _, err := svc.VerifyAndConsume(ctx, issued.RawToken); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("second use: expected ErrLimitReached, got %v", err)
	}
}

func TestService_VerifyAndConsume_ConcurrentLimit(t *testing.T) {
	// Propiedad: con límite N, a lo sumo N consumos exitosos bajo concurrencia.
	svc, _, _ := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	limit := 3
	issued, err := svc.Issue(ctx, IssueInput{
		PatientID:   "pat-1",
		Duration:    "1d",
		AccessScope: "full",
		UsageLimit:  &limit,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VerifyAndConsume(ctx, issued.RawToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrLimitReached) {
			t.Fatalf("unexpected failure kind: %v", err)
		}
	}
	if successes != limit {
		t.Fatalf("expected exactly %d successes, got %d", limit, successes)
	}
}

func TestService_Revoke(t *testing.T) {
	svc, _, _ := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	issued, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1d", AccessScope: "full"})

	if err := svc.Revoke(ctx, issued.Token.ID, "pat-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign revoke: expected ErrForbidden, got %v", err)
	}
	if err := svc.Revoke(ctx, issued.Token.ID, "pat-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Idempotente.
	if err := svc.Revoke(ctx, issued.Token.ID, "pat-1"); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}
}

func TestService_ListActive(t *testing.T) {
	svc, _, clock := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	short, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1h", AccessScope: "basic"})
	long, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "7d", AccessScope: "full"})
	revoked, _ := svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "7d", AccessScope: "full"})
	_, _ = svc.Issue(ctx, IssueInput{PatientID: "pat-2", Duration: "7d", AccessScope: "full"})

	if err := svc.Revoke(ctx, revoked.Token.ID, "pat-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	*clock = clock.Add(2 * time.Hour) // short ya venció

	items, err := svc.ListActive(ctx, "pat-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != long.Token.ID {
		t.Fatalf("expected only the long-lived token, got %+v", items)
	}
	_ = short
}

func TestService_DeactivateExpired(t *testing.T) {
	svc, _, clock := newTokenService(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _ = svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "1h", AccessScope: "basic"})
	_, _ = svc.Issue(ctx, IssueInput{PatientID: "pat-1", Duration: "7d", AccessScope: "basic"})

	*clock = clock.Add(2 * time.Hour)
	n, err := svc.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired token deactivated, got %d", n)
	}
	// Idempotente.
	if n, _ := svc.DeactivateExpired(ctx); n != 0 {
		t.Fatalf("second sweep should do nothing, got %d", n)
	}
}
