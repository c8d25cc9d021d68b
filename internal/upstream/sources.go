package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/models"
)

type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*models.ApplicantProfile, error)
}

type ProgramSource interface {
	ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.Program, error)
	GetProgram(ctx context.Context, programID string) (*models.Program, error)
}

type tokenKey struct{}

// WithBearerToken stores the caller's token so upstream calls can forward
// it.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func authHeaders(ctx context.Context) map[string]string {
	if token := BearerToken(ctx); token != "" {
		return map[string]string{"Authorization": "Bearer " + token}
	}
	return nil
}

// envelope is the response wrapper shared by the profile and program
// services.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

func decodeEnvelope(service string, body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.NewUpstreamMalformedError(service, fmt.Sprintf("invalid json: %v", err))
	}
	if env.Status == "" {
		return errors.NewUpstreamMalformedError(service, "missing status")
	}
	if !strings.EqualFold(env.Status, "success") {
		return errors.NewUpstreamMalformedError(service, fmt.Sprintf("status %q: %s", env.Status, env.Message))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.NewUpstreamMalformedError(service, "missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewUpstreamMalformedError(service, fmt.Sprintf("invalid data: %v", err))
	}
	return nil
}

func normalizePrograms(programs []*models.Program) []*models.Program {
	out := make([]*models.Program, 0, len(programs))
	for _, p := range programs {
		if p != nil && p.ID != "" {
			out = append(out, p)
		}
	}
	return out
}
