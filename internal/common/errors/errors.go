package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Input
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidProgramID  ErrorCode = "INVALID_PROGRAM_ID"
	ErrCodeInvalidScenario   ErrorCode = "INVALID_SCENARIO"
	ErrCodeMissingProfileRef ErrorCode = "MISSING_PROFILE_REFERENCE"

	// Auth
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// Upstream data
	ErrCodeProgramNotFound     ErrorCode = "PROGRAM_NOT_FOUND"
	ErrCodeProfileNotFound     ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamMalformed   ErrorCode = "UPSTREAM_MALFORMED_RESPONSE"
	ErrCodeQueryExecution      ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQuery         ErrorCode = "SEARCH_QUERY_FAILED"

	// Predictor, recovered locally and never surfaced to callers
	ErrCodePredictorUnavailable ErrorCode = "PREDICTOR_UNAVAILABLE"
	ErrCodePredictorMalformed   ErrorCode = "PREDICTOR_MALFORMED_RESPONSE"
	ErrCodeCircuitOpen          ErrorCode = "CIRCUIT_OPEN"

	ErrCodeRequestCancelled ErrorCode = "REQUEST_CANCELLED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request input", details, false, nil)
}

func NewInvalidProgramIDError(programID string) *StandardError {
	return newError(ErrCodeInvalidProgramID, "Program id is missing or malformed",
		fmt.Sprintf("programId: %q", programID), false, nil)
}

func NewInvalidScenarioError(details string, cause error) *StandardError {
	return newError(ErrCodeInvalidScenario, "Scenario change could not be applied", details, false, cause)
}

func NewMissingProfileRefError() *StandardError {
	return newError(ErrCodeMissingProfileRef, "Applicant identity is required", "userId is empty", false, nil)
}

func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Authentication required", details, false, nil)
}

func NewProgramNotFoundError(programID string) *StandardError {
	return newError(ErrCodeProgramNotFound, "Program not found",
		fmt.Sprintf("programId: %s", programID), false, nil)
}

func NewProfileNotFoundError(userID string) *StandardError {
	return newError(ErrCodeProfileNotFound, "Applicant profile not found",
		fmt.Sprintf("userId: %s", userID), false, nil)
}

func NewUpstreamUnavailableError(service string, err error) *StandardError {
	return newError(ErrCodeUpstreamUnavailable,
		fmt.Sprintf("Upstream service '%s' unavailable", service), errDetails(err), true, err)
}

func NewUpstreamMalformedError(service, details string) *StandardError {
	return newError(ErrCodeUpstreamMalformed,
		fmt.Sprintf("Upstream service '%s' returned an unexpected response", service), details, true, nil)
}

func NewQueryExecutionError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecution, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)), true, err)
}

func NewSearchQueryError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQuery, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, errDetails(err)), true, err)
}

func NewPredictorUnavailableError(endpoint string, err error) *StandardError {
	return newError(ErrCodePredictorUnavailable, "Prediction service unavailable",
		fmt.Sprintf("endpoint: %s, error: %s", endpoint, errDetails(err)), true, err)
}

func NewPredictorMalformedError(endpoint, details string) *StandardError {
	return newError(ErrCodePredictorMalformed, "Prediction service returned malformed data",
		fmt.Sprintf("endpoint: %s, %s", endpoint, details), false, nil)
}

func NewCircuitOpenError(name string) *StandardError {
	return newError(ErrCodeCircuitOpen, "Circuit breaker is open",
		fmt.Sprintf("breaker: %s", name), true, nil)
}

func NewRequestCancelledError(err error) *StandardError {
	return newError(ErrCodeRequestCancelled, "Request cancelled", errDetails(err), false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AsStandard extracts a StandardError from the chain, wrapping anything else
// as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// HTTPStatus maps an error to the response status the API returns for it.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch AsStandard(err).Code {
	case ErrCodeInvalidInput, ErrCodeInvalidProgramID, ErrCodeInvalidScenario, ErrCodeMissingProfileRef:
		return http.StatusBadRequest
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeProgramNotFound, ErrCodeProfileNotFound:
		return http.StatusNotFound
	case ErrCodeUpstreamUnavailable, ErrCodeUpstreamMalformed, ErrCodeQueryExecution, ErrCodeSearchQuery:
		return http.StatusServiceUnavailable
	case ErrCodeRequestCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamUnavailable,
		ErrCodeQueryExecution,
		ErrCodeSearchQuery:
		return 3
	case ErrCodeUpstreamMalformed:
		return 1
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID") || strings.HasPrefix(codeStr, "MISSING"):
		return "VALIDATION"
	case code == ErrCodeUnauthenticated:
		return "AUTH"
	case strings.HasPrefix(codeStr, "UPSTREAM") || strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.HasPrefix(codeStr, "PREDICTOR") || code == ErrCodeCircuitOpen:
		return "PREDICTOR"
	default:
		return "OTHER"
	}
}
