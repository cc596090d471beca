package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrNotFound = errors.New("not found")
)

// isUniqueViolation detecta el SQLSTATE 23505 (unique_violation) que el
// driver pgx entrega como *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Open abre una conexión pool a Postgres usando pgx (database/sql).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	// defaults razonables para MVP (ajustable luego)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate crea las tablas si no existen. Suficiente para MVP; cuando haya
// cambios de esquema incompatibles conviene pasar a migraciones versionadas.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patient_profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			date_of_birth TIMESTAMPTZ,
			blood_group TEXT NOT NULL DEFAULT '',
			allergies TEXT NOT NULL DEFAULT '',
			emergency_contact_name TEXT NOT NULL DEFAULT '',
			emergency_contact_number TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS medical_records (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			doctor_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			diagnosis TEXT NOT NULL DEFAULT '',
			prescription TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			record_date TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS medical_records_patient_idx
			ON medical_records (patient_id, record_date DESC)`,
		`CREATE TABLE IF NOT EXISTS access_requests (
			id TEXT PRIMARY KEY,
			doctor_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			request_type TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			requested_hours DOUBLE PRECISION NOT NULL,
			approved_hours DOUBLE PRECISION,
			expires_at TIMESTAMPTZ NOT NULL,
			responded_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS access_requests_pair_idx
			ON access_requests (doctor_id, patient_id)`,
		// El índice único parcial es el que hace cumplir "una solicitud
		// activa por par" bajo concurrencia; el INSERT que choque contra
		// él recibe unique_violation y se traduce a ErrDuplicateActive.
		`CREATE UNIQUE INDEX IF NOT EXISTS access_requests_active_pair_idx
			ON access_requests (doctor_id, patient_id)
			WHERE deleted_at IS NULL AND status IN ('pending','approved')`,
		`CREATE TABLE IF NOT EXISTS share_tokens (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			access_scope TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			usage_limit INTEGER,
			usage_count INTEGER NOT NULL DEFAULT 0,
			shared_with_email TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_accessed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
