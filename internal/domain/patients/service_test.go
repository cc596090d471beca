package patients

import (
	"context"
	"errors"
	"testing"
	"time"

	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"
)

type testRepo struct {
	byID map[string]Profile
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Profile{}}
}

func (r *testRepo) Create(ctx context.Context, p Profile) error {
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("profile already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Update(ctx context.Context, p Profile) error {
	if _, exists := r.byID[p.ID]; !exists {
		return errors.New("not found")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Profile, error) {
	p, ok := r.byID[id]
	if !ok {
		return Profile{}, errors.New("not found")
	}
	return p, nil
}

func (r *testRepo) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	for _, p := range r.byID {
		if p.UserID == userID {
			return p, nil
		}
	}
	return Profile{}, errors.New("not found")
}

func newPatientService(t *testing.T) (*Service, *testRepo, *fieldcrypto.Cipher) {
	t.Helper()
	repo := newTestRepo()
	cipher, err := fieldcrypto.New("patients-test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	svc := NewService(repo, cipher, logger.Nop{})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, cipher
}

func TestService_Upsert_CreatesThenUpdates(t *testing.T) {
	svc, _, _ := newPatientService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, "user-1", UpsertInput{
		FullName:   "Jane Roe",
		BloodGroup: BloodOPos,
		Allergies:  "penicillin",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	updated, err := svc.Upsert(ctx, "user-1", UpsertInput{
		FullName:   "Jane R. Roe",
		BloodGroup: BloodOPos,
		Allergies:  "penicillin, latex",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("upsert must keep the same profile id")
	}
	if updated.FullName != "Jane R. Roe" {
		t.Fatalf("expected updated name, got %q", updated.FullName)
	}
}

func TestService_Upsert_RejectsUnknownBloodGroup(t *testing.T) {
	svc, _, _ := newPatientService(t)

	_, err := svc.Upsert(context.Background(), "user-1", UpsertInput{
		FullName:   "Jane Roe",
		BloodGroup: "Z+",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_AllergiesEncryptedAtRest(t *testing.T) {
	svc, repo, cipher := newPatientService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, "user-1", UpsertInput{
		FullName:  "Jane Roe",
		Allergies: "penicillin",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stored := repo.byID[created.ID]
	if stored.Allergies == "penicillin" {
		t.Fatalf("stored allergies must be encrypted")
	}
	plain, err := cipher.Decrypt(stored.Allergies)
	if err != nil || plain != "penicillin" {
		t.Fatalf("stored allergies should decrypt to original, got %q err=%v", plain, err)
	}

	// La lectura devuelve el claro.
	got, err := svc.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Allergies != "penicillin" {
		t.Fatalf("read should decrypt, got %q", got.Allergies)
	}
}

func TestService_RefOf(t *testing.T) {
	svc, _, _ := newPatientService(t)
	ctx := context.Background()

	if _, err := svc.RefOf(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("without profile: expected ErrNotFound, got %v", err)
	}

	created, err := svc.Upsert(ctx, "user-1", UpsertInput{FullName: "Jane Roe"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ref, err := svc.RefOf(ctx, "user-1")
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if ref != created.ID {
		t.Fatalf("ref should be the profile id, got %q want %q", ref, created.ID)
	}
}
