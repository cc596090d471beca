package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medical-record-access/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

func (r *PatientsRepo) Create(ctx context.Context, p patients.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patient_profiles (
			id, user_id, full_name, date_of_birth, blood_group,
			allergies, emergency_contact_name, emergency_contact_number,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		p.ID,
		p.UserID,
		p.FullName,
		toNullTime(p.DateOfBirth),
		string(p.BloodGroup),
		p.Allergies,
		p.EmergencyContactName,
		p.EmergencyContactNumber,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) Update(ctx context.Context, p patients.Profile) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patient_profiles
		SET
			full_name = $2,
			date_of_birth = $3,
			blood_group = $4,
			allergies = $5,
			emergency_contact_name = $6,
			emergency_contact_number = $7,
			updated_at = $8
		WHERE id = $1
	`,
		p.ID,
		p.FullName,
		toNullTime(p.DateOfBirth),
		string(p.BloodGroup),
		p.Allergies,
		p.EmergencyContactName,
		p.EmergencyContactNumber,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Profile{}, ErrNotFound
	}
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *PatientsRepo) GetByUserID(ctx context.Context, userID string) (patients.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return patients.Profile{}, ErrNotFound
	}
	return r.get(ctx, `WHERE user_id = $1`, userID)
}

func (r *PatientsRepo) get(ctx context.Context, where string, arg any) (patients.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, user_id, full_name, date_of_birth, blood_group,
			allergies, emergency_contact_name, emergency_contact_number,
			created_at, updated_at
		FROM patient_profiles
		`+where, arg)

	var p patients.Profile
	var bloodGroup string
	var dob sql.NullTime

	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FullName,
		&dob,
		&bloodGroup,
		&p.Allergies,
		&p.EmergencyContactName,
		&p.EmergencyContactNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return patients.Profile{}, ErrNotFound
		}
		return patients.Profile{}, err
	}

	p.BloodGroup = patients.BloodGroup(bloodGroup)
	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}

	return p, nil
}

// helper compartido por los repos de este paquete
func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
