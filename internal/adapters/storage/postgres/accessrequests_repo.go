package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medical-record-access/internal/domain/accessrequests"
)

type AccessRequestsRepo struct {
	db *sql.DB
}

func NewAccessRequestsRepo(db *sql.DB) *AccessRequestsRepo {
	return &AccessRequestsRepo{db: db}
}

// Create inserta solo si no hay otra solicitud activa para el par. La
// unicidad la garantiza el índice único parcial sobre (doctor_id,
// patient_id) de filas pending/approved no borradas: dos creates
// concurrentes chocan ahí aunque cada uno haya visto la tabla "vacía".
func (r *AccessRequestsRepo) Create(ctx context.Context, req accessrequests.AccessRequest, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Las solicitudes vencidas por reloj siguen en pending/approved hasta
	// que alguna lectura las toque; acá se marcan expired primero para que
	// no bloqueen el índice único del par.
	if _, err := tx.ExecContext(ctx, `
		UPDATE access_requests
		SET status = 'expired', updated_at = $3
		WHERE doctor_id = $1
		  AND patient_id = $2
		  AND deleted_at IS NULL
		  AND status IN ('pending','approved')
		  AND expires_at <= $3
	`, req.DoctorID, req.PatientID, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO access_requests (
			id, doctor_id, patient_id, request_type, status, reason,
			requested_hours, approved_hours,
			expires_at, responded_at,
			created_at, updated_at, deleted_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		req.ID,
		req.DoctorID,
		req.PatientID,
		string(req.RequestType),
		string(req.Status),
		req.Reason,
		req.RequestedHours,
		toNullFloat(req.ApprovedHours),
		req.ExpiresAt,
		toNullTime(req.RespondedAt),
		req.CreatedAt,
		req.UpdatedAt,
		toNullTime(req.DeletedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return accessrequests.ErrDuplicateActive
		}
		return err
	}

	return tx.Commit()
}

func (r *AccessRequestsRepo) Update(ctx context.Context, req accessrequests.AccessRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET
			request_type = $2,
			status = $3,
			reason = $4,
			requested_hours = $5,
			approved_hours = $6,
			expires_at = $7,
			responded_at = $8,
			updated_at = $9
		WHERE id = $1
		  AND deleted_at IS NULL
	`,
		req.ID,
		string(req.RequestType),
		string(req.Status),
		req.Reason,
		req.RequestedHours,
		toNullFloat(req.ApprovedHours),
		req.ExpiresAt,
		toNullTime(req.RespondedAt),
		req.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessrequests.ErrRepoNotFound
	}
	return nil
}

func (r *AccessRequestsRepo) GetByID(ctx context.Context, id string) (accessrequests.AccessRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}

	row := r.db.QueryRowContext(ctx, selectAccessRequest+`
		WHERE id = $1
		  AND deleted_at IS NULL
	`, id)

	return scanAccessRequest(row)
}

func (r *AccessRequestsRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1
		  AND deleted_at IS NULL
	`, id, now)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessrequests.ErrRepoNotFound
	}
	return nil
}

func (r *AccessRequestsRepo) GetActive(ctx context.Context, doctorID, patientID string, now time.Time) (accessrequests.AccessRequest, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientID = strings.TrimSpace(patientID)
	if doctorID == "" || patientID == "" {
		return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
	}

	row := r.db.QueryRowContext(ctx, selectAccessRequest+`
		WHERE doctor_id = $1
		  AND patient_id = $2
		  AND deleted_at IS NULL
		  AND status IN ('pending','approved')
		  AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, doctorID, patientID, now)

	return scanAccessRequest(row)
}

func (r *AccessRequestsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]accessrequests.AccessRequest, error) {
	return r.list(ctx, `doctor_id`, doctorID)
}

func (r *AccessRequestsRepo) ListByPatient(ctx context.Context, patientID string) ([]accessrequests.AccessRequest, error) {
	return r.list(ctx, `patient_id`, patientID)
}

func (r *AccessRequestsRepo) list(ctx context.Context, column, id string) ([]accessrequests.AccessRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, selectAccessRequest+`
		WHERE `+column+` = $1
		  AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessrequests.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}

	return out, rows.Err()
}

func (r *AccessRequestsRepo) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_requests
		SET status = 'expired', updated_at = $1
		WHERE deleted_at IS NULL
		  AND status IN ('pending','approved')
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const selectAccessRequest = `
	SELECT
		id, doctor_id, patient_id, request_type, status, reason,
		requested_hours, approved_hours,
		expires_at, responded_at,
		created_at, updated_at, deleted_at
	FROM access_requests
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessRequest(row rowScanner) (accessrequests.AccessRequest, error) {
	var req accessrequests.AccessRequest
	var requestType, status string
	var approvedHours sql.NullFloat64
	var respondedAt, deletedAt sql.NullTime

	if err := row.Scan(
		&req.ID,
		&req.DoctorID,
		&req.PatientID,
		&requestType,
		&status,
		&req.Reason,
		&req.RequestedHours,
		&approvedHours,
		&req.ExpiresAt,
		&respondedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
		&deletedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return accessrequests.AccessRequest{}, accessrequests.ErrRepoNotFound
		}
		return accessrequests.AccessRequest{}, err
	}

	req.RequestType = accessrequests.RequestType(requestType)
	req.Status = accessrequests.Status(status)
	if approvedHours.Valid {
		h := approvedHours.Float64
		req.ApprovedHours = &h
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		req.RespondedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		req.DeletedAt = &t
	}

	return req, nil
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
