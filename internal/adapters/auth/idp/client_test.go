package idp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"medical-record-access/internal/platform/httpclient"
	"medical-record-access/internal/ports/auth"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// newStubClient arma un Client contra un IdP simulado por transport.
func newStubClient(t *testing.T, status int, body string, capture *http.Request) *Client {
	t.Helper()
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if capture != nil {
			*capture = *r
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	})

	hc := httpclient.NewWithTransport(time.Second, rt)
	hc.BaseURL = "http://idp.local"
	return &Client{http: hc, apiKey: "test-key", apiKeyHeader: "X-Api-Key"}
}

func TestClient_VerifyToken_Success(t *testing.T) {
	var captured http.Request
	c := newStubClient(t, http.StatusOK,
		`{"user_id":"user-1","email":"doc@example.com","role":"doctor"}`, &captured)

	claims, err := c.VerifyToken(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "doc@example.com" || claims.Role != auth.RoleDoctor {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if captured.URL.Path != "/v1/tokens/verify" {
		t.Fatalf("unexpected path %q", captured.URL.Path)
	}
	if got := captured.Header.Get("X-Api-Key"); got != "test-key" {
		t.Fatalf("api key header not sent, got %q", got)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer raw-token" {
		t.Fatalf("authorization header not sent, got %q", got)
	}
}

func TestClient_VerifyToken_MapsStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"401 unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"403 forbidden", http.StatusForbidden, ErrUnauthorized},
		{"500 upstream", http.StatusInternalServerError, ErrUpstream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newStubClient(t, tc.status, `{"error":"nope"}`, nil)
			_, err := c.VerifyToken(context.Background(), "raw-token")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClient_VerifyToken_Guards(t *testing.T) {
	var unconfigured *Client
	if _, err := unconfigured.VerifyToken(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil client: expected ErrNotConfigured, got %v", err)
	}

	c := newStubClient(t, http.StatusOK, `{}`, nil)
	if _, err := c.VerifyToken(context.Background(), "   "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("blank token: expected ErrUnauthorized, got %v", err)
	}

	// La respuesta del IdP tiene que traer user_id.
	c = newStubClient(t, http.StatusOK, `{"email":"a@b.c"}`, nil)
	if _, err := c.VerifyToken(context.Background(), "raw-token"); err == nil {
		t.Fatal("missing user_id should fail")
	}
}
