package disclosure

import (
	"testing"
	"time"

	"medical-record-access/internal/domain/patients"
	"medical-record-access/internal/domain/records"
)

func sampleProfile() patients.Profile {
	dob := time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC)
	return patients.Profile{
		ID:                     "patient-1",
		UserID:                 "user-1",
		FullName:               "Jane Roe",
		DateOfBirth:            &dob,
		BloodGroup:             patients.BloodOPos,
		Allergies:              "penicillin, peanuts",
		EmergencyContactName:   "John Roe",
		EmergencyContactNumber: "+34 600 000 000",
	}
}

func sampleRecords() []records.Record {
	return []records.Record{
		{ID: "rec-1", PatientID: "patient-1", Title: "Checkup", Diagnosis: "all good"},
		{ID: "rec-2", PatientID: "patient-1", Title: "Follow-up", Notes: "continue treatment"},
	}
}

func TestParseScope(t *testing.T) {
	for _, raw := range []string{"full", "basic", "records_only", "allergies_only", " full "} {
		if _, err := ParseScope(raw); err != nil {
			t.Fatalf("expected %q to parse, got %v", raw, err)
		}
	}
	for _, raw := range []string{"", "all", "emergency", "FULL", "records only"} {
		if _, err := ParseScope(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestProject_Full(t *testing.T) {
	v := Project(ScopeFull, sampleProfile(), sampleRecords())

	if v.Profile.DateOfBirth == nil || v.Profile.BloodGroup == "" {
		t.Fatalf("full scope must include DOB and blood group")
	}
	if v.Profile.Allergies == "" || v.Profile.EmergencyContactName == "" {
		t.Fatalf("full scope must include allergies and emergency contact")
	}
	if len(v.Records) != 2 {
		t.Fatalf("full scope must include all records, got %d", len(v.Records))
	}
}

func TestProject_Basic_OmitsAllergiesAndRecords(t *testing.T) {
	v := Project(ScopeBasic, sampleProfile(), sampleRecords())

	if v.Profile.Allergies != "" {
		t.Fatalf("basic scope must not leak allergies")
	}
	if len(v.Records) != 0 {
		t.Fatalf("basic scope must not include records, got %d", len(v.Records))
	}
	if v.Profile.DateOfBirth == nil || v.Profile.BloodGroup == "" || v.Profile.EmergencyContactName == "" {
		t.Fatalf("basic scope must keep DOB, blood group and emergency contact")
	}
}

func TestProject_AllergiesOnly(t *testing.T) {
	v := Project(ScopeAllergiesOnly, sampleProfile(), sampleRecords())

	if v.Profile.Allergies == "" {
		t.Fatalf("allergies_only must include allergies")
	}
	if v.Profile.BloodGroup != "" || v.Profile.DateOfBirth != nil {
		t.Fatalf("allergies_only must not leak blood group or DOB")
	}
	if v.Profile.EmergencyContactName != "" || v.Profile.EmergencyContactNumber != "" {
		t.Fatalf("allergies_only must not leak emergency contact")
	}
	if len(v.Records) != 0 {
		t.Fatalf("allergies_only must not include records")
	}
}

func TestProject_RecordsOnly_BareIdentity(t *testing.T) {
	v := Project(ScopeRecordsOnly, sampleProfile(), sampleRecords())

	if len(v.Records) != 2 {
		t.Fatalf("records_only must include all records, got %d", len(v.Records))
	}
	if v.Profile.DateOfBirth != nil || v.Profile.BloodGroup != "" || v.Profile.Allergies != "" {
		t.Fatalf("records_only must reduce profile to bare identity")
	}
	if v.Profile.ID == "" {
		t.Fatalf("records_only keeps the identity reference")
	}
}

func TestProject_UnknownScopePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on unknown scope")
		}
	}()
	Project(Scope("emergency"), sampleProfile(), nil)
}

func TestProject_DoesNotMutateInputs(t *testing.T) {
	recs := sampleRecords()
	v := Project(ScopeFull, sampleProfile(), recs)

	v.Records[0].Title = "mutated"
	if recs[0].Title == "mutated" {
		t.Fatalf("projection must copy the record slice")
	}
}
