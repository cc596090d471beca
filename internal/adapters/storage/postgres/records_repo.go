package postgres

import (
	"context"
	"database/sql"
	"strings"

	"medical-record-access/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medical_records (
			id, patient_id, doctor_id, title, description,
			diagnosis, prescription, notes,
			record_date, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		rec.ID,
		rec.PatientID,
		rec.DoctorID,
		rec.Title,
		rec.Description,
		rec.Diagnosis,
		rec.Prescription,
		rec.Notes,
		rec.RecordDate,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, patient_id, doctor_id, title, description,
			diagnosis, prescription, notes,
			record_date, created_at, updated_at
		FROM medical_records
		WHERE id = $1
	`, id)

	var rec records.Record
	if err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.DoctorID,
		&rec.Title,
		&rec.Description,
		&rec.Diagnosis,
		&rec.Prescription,
		&rec.Notes,
		&rec.RecordDate,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return records.Record{}, ErrNotFound
		}
		return records.Record{}, err
	}

	return rec, nil
}

func (r *RecordsRepo) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, patient_id, doctor_id, title, description,
			diagnosis, prescription, notes,
			record_date, created_at, updated_at
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY record_date DESC, created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		var rec records.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.PatientID,
			&rec.DoctorID,
			&rec.Title,
			&rec.Description,
			&rec.Diagnosis,
			&rec.Prescription,
			&rec.Notes,
			&rec.RecordDate,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}
