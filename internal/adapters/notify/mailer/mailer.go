// Package mailer implementa las notificaciones por email delegando en un
// servicio de mensajería HTTP. El servicio remoto resuelve los destinatarios
// a partir de los IDs; aquí solo se arma y despacha el evento.
package mailer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"medical-record-access/internal/domain/accessrequests"
	"medical-record-access/internal/platform/httpclient"
)

type Config struct {
	BaseURL string
	APIKey  string
	From    string

	Timeout time.Duration
}

type Mailer struct {
	http   *httpclient.Client
	apiKey string
	from   string
}

func New(cfg Config) (*Mailer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}

	return &Mailer{
		http:   hc,
		apiKey: strings.TrimSpace(cfg.APIKey),
		from:   strings.TrimSpace(cfg.From),
	}, nil
}

func (m *Mailer) RequestCreated(ctx context.Context, r accessrequests.AccessRequest) error {
	return m.send(ctx, "access_request.created", r)
}

func (m *Mailer) RequestApproved(ctx context.Context, r accessrequests.AccessRequest) error {
	return m.send(ctx, "access_request.approved", r)
}

func (m *Mailer) RequestDenied(ctx context.Context, r accessrequests.AccessRequest) error {
	return m.send(ctx, "access_request.denied", r)
}

type messagePayload struct {
	Event     string    `json:"event"`
	From      string    `json:"from,omitempty"`
	RequestID string    `json:"request_id"`
	DoctorID  string    `json:"doctor_id"`
	PatientID string    `json:"patient_id"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (m *Mailer) send(ctx context.Context, event string, r accessrequests.AccessRequest) error {
	headers := map[string]string{}
	if m.apiKey != "" {
		headers["X-Api-Key"] = m.apiKey
	}

	return m.http.DoJSON(ctx, http.MethodPost, "/v1/messages", headers, messagePayload{
		Event:     event,
		From:      m.from,
		RequestID: r.ID,
		DoctorID:  r.DoctorID,
		PatientID: r.PatientID,
		Reason:    r.Reason,
		ExpiresAt: r.ExpiresAt,
	}, nil)
}
