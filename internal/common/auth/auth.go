// internal/common/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/common/errors"
)

// Principal identifies the caller a bearer token was issued to.
type Principal struct {
	UserID   string
	Username string
	Issuer   string
}

// TokenValidator resolves a raw bearer token to its Principal. Invalid,
// expired or inactive tokens yield an UNAUTHENTICATED error.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

// NewValidator builds the validator selected by cfg.Mode.
func NewValidator(cfg config.AuthConfig) (TokenValidator, error) {
	switch cfg.Mode {
	case "jwt":
		return NewJWTValidator(cfg.JWT.Secret, cfg.JWT.Issuer), nil
	case "keycloak":
		return NewKeycloakClient(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// ExtractBearer returns the token from an Authorization header value. The
// scheme is matched case-insensitively.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", errors.NewUnauthenticatedError("missing Authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.NewUnauthenticatedError("Authorization header must be 'Bearer <token>'")
	}
	return parts[1], nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
