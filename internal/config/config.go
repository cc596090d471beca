// Package config carga la configuración desde variables de entorno
// (con .env opcional para desarrollo local).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/hengadev/errsx"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// DBDSN vacío => repositorios in-memory (modo dev).
	DBDSN string

	// EncryptionSecret deriva la clave AES de los campos sensibles.
	// Obligatorio: sin él no se puede ni cifrar ni leer lo ya cifrado.
	EncryptionSecret string

	// ShareBaseURL arma los links públicos de los share tokens.
	ShareBaseURL string

	LogLevel  string
	LogFormat string

	// IdP opcional: sin BaseURL el API queda en modo dev (headers de debug).
	IDPBaseURL string
	IDPAPIKey  string

	// Mailer opcional: sin BaseURL no se mandan notificaciones.
	MailerBaseURL string
	MailerAPIKey  string
	MailerFrom    string

	HTTPTimeout time.Duration
}

// Load lee el entorno. Devuelve error agregado con TODAS las variables
// inválidas, no solo la primera.
func Load() (Config, error) {
	// .env es un convenience de desarrollo; si no existe no pasa nada.
	_ = godotenv.Load()

	cfg := Config{
		Port:             getenv("PORT", "8080"),
		DBDSN:            os.Getenv("DB_DSN"),
		EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
		ShareBaseURL:     getenv("SHARE_BASE_URL", "http://localhost:8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
		IDPBaseURL:       os.Getenv("IDP_BASE_URL"),
		IDPAPIKey:        os.Getenv("IDP_API_KEY"),
		MailerBaseURL:    os.Getenv("MAILER_BASE_URL"),
		MailerAPIKey:     os.Getenv("MAILER_API_KEY"),
		MailerFrom:       getenv("MAILER_FROM", "noreply@localhost"),
		HTTPTimeout:      10 * time.Second,
	}

	var errs errsx.Map
	if strings.TrimSpace(cfg.EncryptionSecret) == "" {
		errs.Set("ENCRYPTION_SECRET", "required: derives the field encryption key")
	}
	if cfg.IDPBaseURL != "" && strings.TrimSpace(cfg.IDPAPIKey) == "" {
		errs.Set("IDP_API_KEY", "required when IDP_BASE_URL is set")
	}

	return cfg, errs.AsError()
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
