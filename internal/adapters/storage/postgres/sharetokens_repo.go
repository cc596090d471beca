package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medical-record-access/internal/domain/disclosure"
	"medical-record-access/internal/domain/sharetokens"
)

type ShareTokensRepo struct {
	db *sql.DB
}

func NewShareTokensRepo(db *sql.DB) *ShareTokensRepo {
	return &ShareTokensRepo{db: db}
}

func (r *ShareTokensRepo) Create(ctx context.Context, t sharetokens.ShareToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_tokens (
			id, patient_id, token_hash, access_scope,
			expires_at, usage_limit, usage_count,
			shared_with_email, is_active, last_accessed_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		t.ID,
		t.PatientID,
		t.TokenHash,
		string(t.AccessScope),
		t.ExpiresAt,
		toNullInt(t.UsageLimit),
		t.UsageCount,
		t.SharedWithEmail,
		t.IsActive,
		toNullTime(t.LastAccessedAt),
		t.CreatedAt,
	)
	return err
}

func (r *ShareTokensRepo) GetByID(ctx context.Context, id string) (sharetokens.ShareToken, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sharetokens.ShareToken{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, selectShareToken+`
		WHERE id = $1
	`, id)

	return scanShareToken(row)
}

// Consume incrementa usage_count con un UPDATE condicional: la condición y
// el incremento se evalúan en la misma sentencia, así un token con límite N
// jamás supera N usos aunque lleguen consumos concurrentes. Si el UPDATE no
// afecta filas, una segunda lectura clasifica el motivo del rechazo.
func (r *ShareTokensRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (sharetokens.ShareToken, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE share_tokens
		SET usage_count = usage_count + 1,
		    last_accessed_at = $2
		WHERE token_hash = $1
		  AND is_active
		  AND expires_at > $2
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING
			id, patient_id, token_hash, access_scope,
			expires_at, usage_limit, usage_count,
			shared_with_email, is_active, last_accessed_at, created_at
	`, tokenHash, now)

	t, err := scanShareToken(row)
	if err == nil {
		return t, nil
	}
	if err != ErrNotFound {
		return sharetokens.ShareToken{}, err
	}

	// El UPDATE no tocó filas: clasificar por qué.
	row = r.db.QueryRowContext(ctx, selectShareToken+`
		WHERE token_hash = $1
	`, tokenHash)

	t, err = scanShareToken(row)
	if err == ErrNotFound {
		return sharetokens.ShareToken{}, sharetokens.ErrRepoNotFound
	}
	if err != nil {
		return sharetokens.ShareToken{}, err
	}
	if !t.ExpiresAt.After(now) {
		return sharetokens.ShareToken{}, sharetokens.ErrRepoExpired
	}
	return sharetokens.ShareToken{}, sharetokens.ErrRepoExhausted
}

func (r *ShareTokensRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE share_tokens
		SET is_active = FALSE
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ShareTokensRepo) ListActive(ctx context.Context, patientID string, now time.Time) ([]sharetokens.ShareToken, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, selectShareToken+`
		WHERE patient_id = $1
		  AND is_active
		  AND expires_at > $2
		ORDER BY created_at DESC
	`, patientID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharetokens.ShareToken, 0)
	for rows.Next() {
		t, err := scanShareToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

func (r *ShareTokensRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE share_tokens
		SET is_active = FALSE
		WHERE is_active
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const selectShareToken = `
	SELECT
		id, patient_id, token_hash, access_scope,
		expires_at, usage_limit, usage_count,
		shared_with_email, is_active, last_accessed_at, created_at
	FROM share_tokens
`

func scanShareToken(row rowScanner) (sharetokens.ShareToken, error) {
	var t sharetokens.ShareToken
	var scope string
	var usageLimit sql.NullInt64
	var lastAccessedAt sql.NullTime

	if err := row.Scan(
		&t.ID,
		&t.PatientID,
		&t.TokenHash,
		&scope,
		&t.ExpiresAt,
		&usageLimit,
		&t.UsageCount,
		&t.SharedWithEmail,
		&t.IsActive,
		&lastAccessedAt,
		&t.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return sharetokens.ShareToken{}, ErrNotFound
		}
		return sharetokens.ShareToken{}, err
	}

	t.AccessScope = disclosure.Scope(scope)
	if usageLimit.Valid {
		v := int(usageLimit.Int64)
		t.UsageLimit = &v
	}
	if lastAccessedAt.Valid {
		ts := lastAccessedAt.Time
		t.LastAccessedAt = &ts
	}

	return t, nil
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
