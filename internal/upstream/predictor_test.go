package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

func TestPredictorClient_Estimate(t *testing.T) {
	var got map[string]json.RawMessage
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SuccessProbabilityPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{
			"status": "success",
			"success_probability": 0.736,
			"explanation": {
				"positive_factors": ["Strong language scores", {"factor": "In-demand occupation", "impact": "high"}],
				"negative_factors": [{"factor": "Limited funds"}],
				"notes": "model v3"
			}
		}`)
	})
	client := NewPredictorClient(srv.URL, time.Second, logger.NewTestLogger(t))

	est, err := client.Estimate(context.Background(), &models.ApplicantProfile{UserID: "u1"}, &models.Program{ID: "p1"})

	require.NoError(t, err)
	assert.Contains(t, got, "user_profile")
	assert.Contains(t, got, "program_details")
	assert.Equal(t, 74, est.Probability)
	assert.Equal(t, models.SourceModel, est.Source)
	assert.Equal(t, "model v3", est.Notes)
	assert.Equal(t, []models.Factor{
		{Factor: "Strong language scores", Impact: models.SeverityMedium},
		{Factor: "In-demand occupation", Impact: models.SeverityHigh},
	}, est.PositiveFactors)
	assert.Equal(t, []models.Factor{{Factor: "Limited funds", Impact: models.SeverityMedium}}, est.NegativeFactors)
}

func TestPredictorClient_Score(t *testing.T) {
	srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MatchScorePath, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"match_score": 0.82}`)
	})
	client := NewPredictorClient(srv.URL, time.Second, logger.NewTestLogger(t))

	est, err := client.Score(context.Background(), &models.ApplicantProfile{}, &models.Program{ID: "p1"})

	require.NoError(t, err)
	assert.Equal(t, 0.82, est.Score)
	assert.Empty(t, est.PositiveFactors)
}

func TestPredictorClient_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
	}{
		{"server error", http.StatusInternalServerError, `{}`, errors.ErrCodePredictorUnavailable},
		{"missing probability", http.StatusOK, `{"status": "success"}`, errors.ErrCodePredictorMalformed},
		{"probability out of range", http.StatusOK, `{"success_probability": 1.7}`, errors.ErrCodePredictorMalformed},
		{"probability as string", http.StatusOK, `{"success_probability": "0.5"}`, errors.ErrCodePredictorMalformed},
		{"error status", http.StatusOK, `{"status": "error", "success_probability": 0.5}`, errors.ErrCodePredictorMalformed},
		{"bad impact", http.StatusOK, `{"success_probability": 0.5, "explanation": {"positive_factors": [{"factor": "x", "impact": "huge"}]}}`, errors.ErrCodePredictorMalformed},
		{"not json", http.StatusOK, `<html></html>`, errors.ErrCodePredictorMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJSONServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			client := NewPredictorClient(srv.URL, time.Second, logger.NewTestLogger(t))

			_, err := client.Estimate(context.Background(), &models.ApplicantProfile{}, &models.Program{ID: "p1"})

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}
