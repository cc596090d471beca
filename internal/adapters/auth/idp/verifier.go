package idp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medical-record-access/internal/ports/auth"
)

var (
	ErrTokenEmpty  = errors.New("token is empty")
	ErrUnknownRole = errors.New("unknown role in claims")
)

// Verifier implementa auth.AuthVerifier contra el proveedor de identidad.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("idp verify failed: %w", err)
	}

	// Sin rol conocido no hay autorización posible en los handlers.
	switch claims.Role {
	case auth.RoleDoctor, auth.RolePatient:
	default:
		return auth.Claims{}, ErrUnknownRole
	}

	return claims, nil
}
