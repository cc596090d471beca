package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"
)

type testRepo struct {
	byID map[string]Record
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Record{}}
}

func (r *testRepo) Create(ctx context.Context, rec Record) error {
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, errors.New("not found")
	}
	return rec, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// testGrants concede según el mapa y cuenta las consultas: los permisos
// deben verificarse en cada operación, nunca recordarse.
type testGrants struct {
	allow map[AccessType]bool
	calls int
}

func (g *testGrants) HasAccess(ctx context.Context, doctorID, patientID string, want AccessType) (bool, error) {
	g.calls++
	return g.allow[want], nil
}

func newRecordService(t *testing.T, grants GrantChecker) (*Service, *testRepo, *fieldcrypto.Cipher) {
	t.Helper()
	repo := newTestRepo()
	cipher, err := fieldcrypto.New("records-test-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	svc := NewService(repo, grants, cipher, logger.Nop{})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo, cipher
}

func TestService_CreateByPatient_SealsSensitiveFields(t *testing.T) {
	svc, repo, cipher := newRecordService(t, &testGrants{})
	ctx := context.Background()

	rec, err := svc.CreateByPatient(ctx, "pat-1", CreateInput{
		Title:        "Checkup",
		Description:  "routine visit",
		Diagnosis:    "healthy",
		Prescription: "none",
		Notes:        "come back next year",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// El valor devuelto queda en claro para el caller.
	if rec.Diagnosis != "healthy" {
		t.Fatalf("returned record should be plaintext, got %q", rec.Diagnosis)
	}
	if rec.DoctorID != "" {
		t.Fatalf("patient-authored record should have no doctor, got %q", rec.DoctorID)
	}
	if !rec.RecordDate.Equal(svc.now()) {
		t.Fatalf("record date should default to now, got %v", rec.RecordDate)
	}

	// Lo persistido va cifrado, y descifra al original.
	stored := repo.byID[rec.ID]
	if stored.Diagnosis == "healthy" {
		t.Fatalf("stored diagnosis must be encrypted")
	}
	plain, err := cipher.Decrypt(stored.Diagnosis)
	if err != nil || plain != "healthy" {
		t.Fatalf("stored diagnosis should decrypt to original, got %q err=%v", plain, err)
	}
	if stored.Title != "Checkup" {
		t.Fatalf("title is not sensitive and stays plaintext, got %q", stored.Title)
	}
}

func TestService_Create_RequiresTitle(t *testing.T) {
	svc, _, _ := newRecordService(t, &testGrants{})

	if _, err := svc.CreateByPatient(context.Background(), "pat-1", CreateInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_CreateByDoctor_NeedsCreateGrant(t *testing.T) {
	grants := &testGrants{allow: map[AccessType]bool{}}
	svc, _, _ := newRecordService(t, grants)
	ctx := context.Background()

	in := CreateInput{Title: "Consultation", Diagnosis: "flu"}

	if _, err := svc.CreateByDoctor(ctx, "doc-1", "pat-1", in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("without grant: expected ErrForbidden, got %v", err)
	}

	grants.allow[AccessCreate] = true
	rec, err := svc.CreateByDoctor(ctx, "doc-1", "pat-1", in)
	if err != nil {
		t.Fatalf("with grant: %v", err)
	}
	if rec.DoctorID != "doc-1" {
		t.Fatalf("doctor-authored record should carry the doctor, got %q", rec.DoctorID)
	}
}

func TestService_ListForDoctor_ChecksGrantEveryCall(t *testing.T) {
	grants := &testGrants{allow: map[AccessType]bool{AccessView: true}}
	svc, _, _ := newRecordService(t, grants)
	ctx := context.Background()

	if _, err := svc.CreateByPatient(ctx, "pat-1", CreateInput{Title: "Checkup", Diagnosis: "healthy"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := svc.ListForDoctor(ctx, "doc-1", "pat-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Diagnosis != "healthy" {
		t.Fatalf("expected one decrypted record, got %+v", items)
	}

	before := grants.calls
	if _, err := svc.ListForDoctor(ctx, "doc-1", "pat-1"); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if grants.calls != before+1 {
		t.Fatalf("grant must be re-checked per call")
	}

	// El permiso se revoca y la siguiente lectura falla, sin caché de por medio.
	grants.allow[AccessView] = false
	if _, err := svc.ListForDoctor(ctx, "doc-1", "pat-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("after revoke: expected ErrForbidden, got %v", err)
	}
}

func TestService_List_DegradesCorruptFields(t *testing.T) {
	svc, repo, _ := newRecordService(t, &testGrants{})
	ctx := context.Background()

	rec, err := svc.CreateByPatient(ctx, "pat-1", CreateInput{Title: "Checkup", Diagnosis: "healthy", Notes: "ok"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Corromper un campo persistido: la lectura degrada ese campo a vacío
	// pero no pierde el resto del registro.
	stored := repo.byID[rec.ID]
	stored.Diagnosis = "not-a-valid-blob"
	repo.byID[rec.ID] = stored

	items, err := svc.ListForPatient(ctx, "pat-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
	if items[0].Diagnosis != "" {
		t.Fatalf("corrupt field should degrade to empty, got %q", items[0].Diagnosis)
	}
	if items[0].Notes != "ok" {
		t.Fatalf("intact fields should still decrypt, got %q", items[0].Notes)
	}
}
