package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestHTTPProfileSource_GetProfile(t *testing.T) {
	var gotAuth, gotPath string
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, `{
			"status": "success",
			"data": {"profile": {
				"userId": "user-1",
				"workExperience": {"totalYears": 4},
				"languageProficiency": [{"language": "English", "testType": "IELTS", "overallScore": 7.5}]
			}}
		}`)
	})

	src := NewHTTPProfileSource(srv.URL+"/", time.Second, logger.NewTestLogger(t))
	ctx := WithBearerToken(context.Background(), "token-abc")

	profile, err := src.GetProfile(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, "/profile/user-1", gotPath)
	assert.Equal(t, "user-1", profile.UserID)
	require.NotNil(t, profile.WorkExperience.TotalYears)
	assert.Equal(t, 4.0, *profile.WorkExperience.TotalYears)
	assert.True(t, profile.LanguageProficiency[0].HasTestResult())
}

func TestHTTPProfileSource_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
	}{
		{"not found", http.StatusNotFound, `{}`, errors.ErrCodeProfileNotFound},
		{"unauthorized", http.StatusUnauthorized, `{}`, errors.ErrCodeUnauthenticated},
		{"server error", http.StatusBadGateway, `{}`, errors.ErrCodeUpstreamUnavailable},
		{"not json", http.StatusOK, `<html>`, errors.ErrCodeUpstreamMalformed},
		{"error status", http.StatusOK, `{"status": "error", "message": "boom"}`, errors.ErrCodeUpstreamMalformed},
		{"missing profile", http.StatusOK, `{"status": "success", "data": {}}`, errors.ErrCodeUpstreamMalformed},
		{"missing status", http.StatusOK, `{"data": {"profile": {"userId": "user-1"}}}`, errors.ErrCodeUpstreamMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			src := NewHTTPProfileSource(srv.URL, time.Second, logger.NewTestLogger(t))

			_, err := src.GetProfile(context.Background(), "user-1")

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestHTTPProfileSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	src := NewHTTPProfileSource(srv.URL, time.Second, logger.NewTestLogger(t))

	_, err := src.GetProfile(context.Background(), "user-1")

	assert.True(t, errors.HasCode(err, errors.ErrCodeUpstreamUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, errors.HTTPStatus(err))
}

func TestHTTPProfileSource_EmptyUserID(t *testing.T) {
	src := NewHTTPProfileSource("http://unused", time.Second, logger.NewTestLogger(t))

	_, err := src.GetProfile(context.Background(), " ")

	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingProfileRef))
}

func TestHTTPProgramSource_ListPrograms(t *testing.T) {
	var gotQuery string
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/programs", r.URL.Path)
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{
			"status": "success",
			"data": {"programs": [
				{"id": "p1", "name": "Express Entry", "countryId": "ca", "category": "work",
				 "eligibilityCriteria": [{"kind": "age", "name": "Age", "maxValue": "45", "isRequired": true}]},
				{"id": "", "name": "broken"},
				{"id": "p2", "name": "Study Permit", "countryId": "ca", "category": "study"}
			]}
		}`)
	})
	src := NewHTTPProgramSource(srv.URL, time.Second, logger.NewTestLogger(t))

	programs, err := src.ListPrograms(context.Background(), models.ProgramFilter{Category: "work", CountryID: "ca"})

	require.NoError(t, err)
	assert.Equal(t, "category=work&countryId=ca", gotQuery)
	require.Len(t, programs, 2)
	assert.Equal(t, "p1", programs[0].ID)
	upper, ok := programs[0].EligibilityCriteria[0].MaxNumber()
	assert.True(t, ok)
	assert.Equal(t, 45.0, upper)
}

func TestHTTPProgramSource_GetProgram(t *testing.T) {
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/programs/p1":
			writeJSON(w, http.StatusOK, `{"status": "success", "data": {"program": {"id": "p1", "name": "Express Entry"}}}`)
		case "/programs/down":
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"status": "error"}`)
		}
	})
	src := NewHTTPProgramSource(srv.URL, time.Second, logger.NewTestLogger(t))

	p, err := src.GetProgram(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Express Entry", p.Name)

	_, err = src.GetProgram(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeProgramNotFound))
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatus(err))

	_, err = src.GetProgram(context.Background(), "down")
	assert.True(t, errors.HasCode(err, errors.ErrCodeUpstreamUnavailable))
}

func TestHTTPProgramSource_RequiresSuccessStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing status", `{"data": {"programs": [{"id": "p1"}]}}`},
		{"error status", `{"status": "error", "data": {"programs": [{"id": "p1"}]}}`},
		{"missing data", `{"status": "success"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			src := NewHTTPProgramSource(srv.URL, time.Second, logger.NewTestLogger(t))

			programs, err := src.ListPrograms(context.Background(), models.ProgramFilter{})

			require.Error(t, err)
			assert.Nil(t, programs)
			assert.True(t, errors.HasCode(err, errors.ErrCodeUpstreamMalformed), "got %v", err)
		})
	}
}

func TestHTTPProgramSource_CancelledContext(t *testing.T) {
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{}`)
	})
	src := NewHTTPProgramSource(srv.URL, time.Second, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.ListPrograms(ctx, models.ProgramFilter{})

	assert.True(t, errors.HasCode(err, errors.ErrCodeRequestCancelled))
}
