// internal/workers/advisor/estimate-success-probability/handler.go
package estimatesuccessprobability

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const TaskType = "estimate-success-probability"

type Estimator interface {
	Probability(ctx context.Context, userID, programID string) (*models.ProbabilityResult, error)
}

type Handler struct {
	service Estimator
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(service Estimator, runner *camunda.Runner, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		runner:  runner,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (interface{}, error) {
		input, err := h.parseInput(job)
		if err != nil {
			return nil, err
		}
		return h.Execute(ctx, input)
	})
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := h.runner.Decode(job, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.service.Probability(ctx, input.UserID, input.ProgramID)
	if err != nil {
		return nil, err
	}

	est := result.Estimate
	output := &Output{
		ProgramID:          result.ProgramID,
		ProgramName:        result.ProgramName,
		SuccessProbability: est.Probability,
		PredictionSource:   est.Source,
		PositiveFactors:    nonNil(est.PositiveFactors),
		NegativeFactors:    nonNil(est.NegativeFactors),
		IsEligible:         result.IsEligible,
	}

	h.logger.Info("success probability estimated", map[string]interface{}{
		"userId":      input.UserID,
		"programId":   output.ProgramID,
		"probability": output.SuccessProbability,
		"source":      string(output.PredictionSource),
	})
	return output, nil
}

func nonNil(factors []models.Factor) []models.Factor {
	if factors == nil {
		return []models.Factor{}
	}
	return factors
}
