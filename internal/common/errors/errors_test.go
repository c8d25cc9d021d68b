package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", NewInvalidInputError("limit"), http.StatusBadRequest},
		{"invalid program id", NewInvalidProgramIDError("x"), http.StatusBadRequest},
		{"invalid scenario", NewInvalidScenarioError("bad", nil), http.StatusBadRequest},
		{"missing profile", NewMissingProfileRefError(), http.StatusBadRequest},
		{"unauthenticated", NewUnauthenticatedError("no token"), http.StatusUnauthorized},
		{"program not found", NewProgramNotFoundError("p1"), http.StatusNotFound},
		{"profile not found", NewProfileNotFoundError("u1"), http.StatusNotFound},
		{"upstream", NewUpstreamUnavailableError("profile", stderrors.New("refused")), http.StatusServiceUnavailable},
		{"malformed", NewUpstreamMalformedError("programs", "bad json"), http.StatusServiceUnavailable},
		{"query", NewQueryExecutionError("list", stderrors.New("boom")), http.StatusServiceUnavailable},
		{"search", NewSearchQueryError("programs", stderrors.New("boom")), http.StatusServiceUnavailable},
		{"cancelled", NewRequestCancelledError(context.Canceled), 499},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("load: %w", NewProgramNotFoundError("p1")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAsStandard(t *testing.T) {
	assert.Nil(t, AsStandard(nil))

	plain := stderrors.New("boom")
	wrapped := AsStandard(plain)
	assert.Equal(t, ErrCodeInternal, wrapped.Code)
	assert.ErrorIs(t, wrapped, plain)

	original := NewProfileNotFoundError("u1")
	assert.Same(t, original, AsStandard(fmt.Errorf("ctx: %w", original)))
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewCircuitOpenError("predictor"))
	assert.True(t, HasCode(err, ErrCodeCircuitOpen))
	assert.False(t, HasCode(err, ErrCodeInternal))
	assert.False(t, HasCode(stderrors.New("x"), ErrCodeInternal))
}

func TestStandardError_Unwrap(t *testing.T) {
	err := NewRequestCancelledError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "REQUEST_CANCELLED")
}

func TestConvertToBPMNError(t *testing.T) {
	upstream := ConvertToBPMNError(NewUpstreamUnavailableError("profile", stderrors.New("refused")))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", upstream.Code)
	assert.True(t, upstream.Retryable)
	assert.Equal(t, 3, upstream.Retries)

	invalid := ConvertToBPMNError(NewInvalidInputError("limit"))
	assert.False(t, invalid.Retryable)
	assert.Equal(t, 0, invalid.Retries)

	vars := invalid.ToErrorVariables()
	assert.Equal(t, "INVALID_INPUT", vars["errorCode"])
	assert.Equal(t, "INVALID_INPUT", vars["originalErrorCode"])
	assert.Contains(t, vars, "timestamp")
}

func TestErrorHandler_RemainingRetries(t *testing.T) {
	upstream := ConvertToBPMNError(NewUpstreamUnavailableError("profile", nil))
	malformed := ConvertToBPMNError(NewUpstreamMalformedError("programs", "bad"))
	invalid := ConvertToBPMNError(NewInvalidInputError("x"))

	h := NewErrorHandler(nil)
	assert.Equal(t, 2, h.RemainingRetries(3, upstream))
	assert.Equal(t, 3, h.RemainingRetries(10, upstream))
	assert.Equal(t, 1, h.RemainingRetries(3, malformed))
	assert.Equal(t, 0, h.RemainingRetries(1, upstream))
	assert.Equal(t, 0, h.RemainingRetries(0, upstream))
	assert.Equal(t, 0, h.RemainingRetries(3, invalid))

	capped := NewErrorHandler(nil).WithMaxRetries(1)
	assert.Equal(t, 1, capped.RemainingRetries(10, upstream))
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeInvalidInput:         "VALIDATION",
		ErrCodeMissingProfileRef:    "VALIDATION",
		ErrCodeUnauthenticated:      "AUTH",
		ErrCodeUpstreamUnavailable:  "UPSTREAM",
		ErrCodeProgramNotFound:      "UPSTREAM",
		ErrCodeQueryExecution:       "DATABASE",
		ErrCodePredictorUnavailable: "PREDICTOR",
		ErrCodeCircuitOpen:          "PREDICTOR",
		ErrCodeInternal:             "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}

func TestStandardError_WithMetadata(t *testing.T) {
	err := NewProgramNotFoundError("p1").WithMetadata("source", "postgres")
	require.NotNil(t, err.Metadata)
	assert.Equal(t, "postgres", err.Metadata["source"])
}
