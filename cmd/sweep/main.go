// Comando sweep: una pasada de mantenimiento sobre la base de datos.
// Marca como expiradas las solicitudes vencidas y apaga los share tokens
// vencidos. Pensado para correr periódicamente (cron); la vigencia real no
// depende de él, cada lectura la verifica por su cuenta.
package main

import (
	"context"
	"log"
	"time"

	pg "medical-record-access/internal/adapters/storage/postgres"
	"medical-record-access/internal/config"
	"medical-record-access/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DBDSN == "" {
		log.Fatal("sweep requires DB_DSN: in-memory stores have nothing to sweep")
	}

	appLog := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "medical-record-access-sweep",
	})

	db, err := pg.Open(cfg.DBDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	expired, err := pg.NewAccessRequestsRepo(db).ExpireStale(ctx, now)
	if err != nil {
		log.Fatalf("expire access requests: %v", err)
	}

	deactivated, err := pg.NewShareTokensRepo(db).DeactivateExpired(ctx, now)
	if err != nil {
		log.Fatalf("deactivate share tokens: %v", err)
	}

	appLog.Info("sweep done", map[string]any{
		"requests_expired":   expired,
		"tokens_deactivated": deactivated,
	})
}
