// internal/workers/advisor/simulate-scenario/handler.go
package simulatescenario

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const TaskType = "simulate-scenario"

type Simulator interface {
	Simulate(ctx context.Context, req advisor.SimulateRequest) (*models.ScenarioResult, error)
}

type Handler struct {
	service Simulator
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(service Simulator, runner *camunda.Runner, log logger.Logger) *Handler {
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
	result, err := h.service.Simulate(ctx, advisor.SimulateRequest{
		UserID:    input.UserID,
		Changes:   input.ProfileChanges,
		ProgramID: input.ProgramIDToEvaluate,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{ScenarioResult: result}
	if result.Program != nil {
		output.BecomesEligible = result.Program.IsEligible
	}

	h.logger.Info("scenario simulated", map[string]interface{}{
		"userId":      input.UserID,
		"changedKeys": len(input.ProfileChanges),
		"programId":   input.ProgramIDToEvaluate,
		"ranked":      len(result.RankedPrograms),
	})
	return output, nil
}
