package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"medical-record-access/internal/adapters/auth/idp"
	"medical-record-access/internal/adapters/notify/mailer"
	pg "medical-record-access/internal/adapters/storage/postgres"
	"medical-record-access/internal/config"
	"medical-record-access/internal/domain/accessrequests"
	"medical-record-access/internal/platform/logger"
	"medical-record-access/internal/ports/auth"
	"medical-record-access/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "medical-record-access",
	})

	// Sin verifier el API queda en modo dev (headers de debug).
	var verifier auth.AuthVerifier
	if cfg.IDPBaseURL != "" {
		client, err := idp.NewClient(idp.Config{
			BaseURL: cfg.IDPBaseURL,
			APIKey:  cfg.IDPAPIKey,
			Timeout: cfg.HTTPTimeout,
		})
		if err != nil {
			log.Fatalf("idp: %v", err)
		}
		verifier = idp.NewVerifier(client)
	} else {
		appLog.Warn("no IDP configured, running in dev auth mode", nil)
	}

	var notifier accessrequests.Notifier
	if cfg.MailerBaseURL != "" {
		m, err := mailer.New(mailer.Config{
			BaseURL: cfg.MailerBaseURL,
			APIKey:  cfg.MailerAPIKey,
			From:    cfg.MailerFrom,
			Timeout: cfg.HTTPTimeout,
		})
		if err != nil {
			log.Fatalf("mailer: %v", err)
		}
		notifier = m
	}

	opts := router.Options{
		AuthVerifier:     verifier,
		EncryptionSecret: cfg.EncryptionSecret,
		ShareBaseURL:     cfg.ShareBaseURL,
		Notifier:         notifier,
		Log:              appLog,
	}

	if cfg.DBDSN != "" {
		db, err := pg.Open(cfg.DBDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.Migrate(ctx, db); err != nil {
			cancel()
			log.Fatalf("migrate: %v", err)
		}
		cancel()

		opts.DB = db
	}

	r, err := router.NewRouter(opts)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	appLog.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
