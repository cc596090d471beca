package sharetokens

import (
	"context"
	"errors"
	"time"
)

// Errores de clasificación del consumo; el repositorio decide cuál aplica
// dentro de la misma unidad atómica que el incremento.
var (
	ErrRepoNotFound  = errors.New("token not found")
	ErrRepoExpired   = errors.New("token expired")
	ErrRepoExhausted = errors.New("token exhausted or inactive")
)

type Repository interface {
	Create(ctx context.Context, t ShareToken) error
	GetByID(ctx context.Context, id string) (ShareToken, error)

	// Consume busca por hash y, si el token admite un uso más en `now`,
	// incrementa usageCount y fija lastAccessedAt EN UN SOLO PASO atómico
	// (compare-and-increment). Dos consumos concurrentes contra un token
	// con límite 1 jamás tienen éxito ambos. Devuelve el token ya
	// incrementado, o ErrRepoNotFound / ErrRepoExpired / ErrRepoExhausted.
	Consume(ctx context.Context, tokenHash string, now time.Time) (ShareToken, error)

	// Deactivate apaga el token; idempotente.
	Deactivate(ctx context.Context, id string) error

	// ListActive devuelve los tokens activos y sin expirar del paciente.
	ListActive(ctx context.Context, patientID string, now time.Time) ([]ShareToken, error)

	// DeactivateExpired apaga los tokens vencidos (barrido consultivo).
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}
