// internal/workers/advisor/recommend-programs/handler_test.go
package recommendprograms

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
	"immigration-advisor/pkg/registry"
)

// ==========================
// Mock Service
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Recommend(ctx context.Context, req advisor.RecommendRequest) (*advisor.Recommendations, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*advisor.Recommendations), args.Error(1)
}

// ==========================
// Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "immigration-advice",
		ElementId:          "Activity_RecommendPrograms",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, service Recommender) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	settings, err := camunda.ResolveJob(&config.Config{}, reg, TaskType)
	require.NoError(t, err)
	log := logger.NewTestLogger(t)
	return NewHandler(service, camunda.NewRunner(settings, nil, log), log)
}

// ==========================
// Input Parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, new(MockService))

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"userId":    "user-1",
		"category":  "work",
		"countryId": "ca",
		"limit":     5,
	}))

	require.NoError(t, err)
	assert.Equal(t, &Input{UserID: "user-1", Category: "work", CountryID: "ca", Limit: 5}, input)
}

func TestHandler_ParseInputValidation(t *testing.T) {
	h := newTestHandler(t, new(MockService))

	tests := []struct {
		name      string
		variables map[string]interface{}
	}{
		{"missing userId", map[string]interface{}{"category": "work"}},
		{"limit too large", map[string]interface{}{"userId": "u1", "limit": 500}},
		{"negative limit", map[string]interface{}{"userId": "u1", "limit": -1}},
		{"fractional limit", map[string]interface{}{"userId": "u1", "limit": 2.5}},
		{"category not string", map[string]interface{}{"userId": "u1", "category": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(createMockJob(2, tt.variables))

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)
		})
	}
}

// ==========================
// Execution
// ==========================

func TestHandler_Execute(t *testing.T) {
	service := new(MockService)
	service.On("Recommend", mock.Anything, advisor.RecommendRequest{
		UserID: "user-1",
		Filter: models.ProgramFilter{CountryID: "au"},
		Limit:  2,
	}).Return(&advisor.Recommendations{
		Programs: []models.ScoredProgram{
			{ProgramID: "p1", IsEligible: true, OverallScore: 0.8},
			{ProgramID: "p2", IsEligible: false},
		},
		TotalPrograms: 4,
		EligibleCount: 1,
	}, nil)
	h := newTestHandler(t, service)

	output, err := h.Execute(context.Background(), &Input{UserID: "user-1", CountryID: "au", Limit: 2})

	require.NoError(t, err)
	assert.Len(t, output.RecommendedPrograms, 2)
	assert.Equal(t, "p1", output.TopProgramID)
	assert.Equal(t, 4, output.TotalPrograms)
	assert.Equal(t, 1, output.EligibleCount)
	assert.True(t, output.HasEligibleProgram)
	service.AssertExpectations(t)
}

func TestHandler_ExecuteEmptyCatalog(t *testing.T) {
	service := new(MockService)
	service.On("Recommend", mock.Anything, mock.Anything).Return(&advisor.Recommendations{}, nil)
	h := newTestHandler(t, service)

	output, err := h.Execute(context.Background(), &Input{UserID: "user-1"})

	require.NoError(t, err)
	assert.NotNil(t, output.RecommendedPrograms)
	assert.Empty(t, output.TopProgramID)
	assert.False(t, output.HasEligibleProgram)

	vars, err := json.Marshal(output)
	require.NoError(t, err)
	assert.Contains(t, string(vars), `"recommendedPrograms":[]`)
}

func TestHandler_ExecutePropagatesErrors(t *testing.T) {
	service := new(MockService)
	service.On("Recommend", mock.Anything, mock.Anything).
		Return(nil, errors.NewProfileNotFoundError("ghost"))
	h := newTestHandler(t, service)

	output, err := h.Execute(context.Background(), &Input{UserID: "ghost"})

	assert.Nil(t, output)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProfileNotFound))
	service.AssertExpectations(t)
}
