package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	mem "medical-record-access/internal/adapters/storage/memory"
	pg "medical-record-access/internal/adapters/storage/postgres"
	"medical-record-access/internal/domain/accessrequests"
	"medical-record-access/internal/domain/patients"
	"medical-record-access/internal/domain/records"
	"medical-record-access/internal/domain/sharetokens"
	"medical-record-access/internal/middleware"
	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"
	"medical-record-access/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// EncryptionSecret deriva la clave de cifrado de campos. Obligatorio.
	EncryptionSecret string

	// ShareBaseURL arma los links públicos de share tokens.
	ShareBaseURL string

	// Notifier opcional para avisos de access requests.
	Notifier accessrequests.Notifier

	Log logger.Logger
}

func NewRouter(opts Options) (http.Handler, error) {
	cipher, err := fieldcrypto.New(opts.EncryptionSecret)
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		patientRepo patients.Repository
		recordRepo  records.Repository
		requestRepo accessrequests.Repository
		tokenRepo   sharetokens.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		patientRepo = pg.NewPatientsRepo(db)
		recordRepo = pg.NewRecordsRepo(db)
		requestRepo = pg.NewAccessRequestsRepo(db)
		tokenRepo = pg.NewShareTokensRepo(db)
	} else {
		patientRepo = mem.NewPatientRepo()
		recordRepo = mem.NewRecordRepo()
		requestRepo = mem.NewAccessRequestRepo()
		tokenRepo = mem.NewShareTokenRepo()
	}

	// Services por módulo
	patientsSvc := patients.NewService(patientRepo, cipher, log)
	requestsSvc := accessrequests.NewService(requestRepo, opts.Notifier, log)
	grants := grantChecker{svc: requestsSvc}
	recordsSvc := records.NewService(recordRepo, grants, cipher, log)
	tokensSvc := sharetokens.NewService(tokenRepo, patientsSvc, recordsSvc, log)

	// Rutas por módulo
	patients.RegisterRoutes(r, patientsSvc, grants)
	records.RegisterRoutes(r, recordsSvc, patientsSvc)
	accessrequests.RegisterRoutes(r, requestsSvc, patientsSvc)
	sharetokens.RegisterRoutes(r, tokensSvc, patientsSvc, opts.ShareBaseURL)

	return r, nil
}

// grantChecker traduce los permisos de access requests a las preguntas que
// hacen los otros módulos, sin que estos importen accessrequests.
type grantChecker struct {
	svc *accessrequests.Service
}

func (g grantChecker) HasAccess(ctx context.Context, doctorID, patientID string, want records.AccessType) (bool, error) {
	switch want {
	case records.AccessCreate:
		return g.svc.HasAccess(ctx, doctorID, patientID, accessrequests.TypeCreate)
	default:
		return g.svc.HasAccess(ctx, doctorID, patientID, accessrequests.TypeView)
	}
}

func (g grantChecker) CanView(ctx context.Context, doctorID, patientID string) (bool, error) {
	return g.svc.HasAccess(ctx, doctorID, patientID, accessrequests.TypeView)
}
