// internal/workers/advisor/recommend-programs/handler.go
package recommendprograms

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const TaskType = "recommend-programs"

type Recommender interface {
	Recommend(ctx context.Context, req advisor.RecommendRequest) (*advisor.Recommendations, error)
}

type Handler struct {
	service Recommender
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(service Recommender, runner *camunda.Runner, log logger.Logger) *Handler {
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
	result, err := h.service.Recommend(ctx, advisor.RecommendRequest{
		UserID: input.UserID,
		Filter: models.ProgramFilter{Category: input.Category, CountryID: input.CountryID},
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{
		RecommendedPrograms: result.Programs,
		TotalPrograms:       result.TotalPrograms,
		EligibleCount:       result.EligibleCount,
		HasEligibleProgram:  result.EligibleCount > 0,
	}
	if output.RecommendedPrograms == nil {
		output.RecommendedPrograms = []models.ScoredProgram{}
	}
	if len(result.Programs) > 0 {
		output.TopProgramID = result.Programs[0].ProgramID
	}

	h.logger.Info("recommendations ready", map[string]interface{}{
		"userId":        input.UserID,
		"returned":      len(output.RecommendedPrograms),
		"eligibleCount": output.EligibleCount,
	})
	return output, nil
}
