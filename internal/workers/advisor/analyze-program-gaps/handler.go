// internal/workers/advisor/analyze-program-gaps/handler.go
package analyzeprogramgaps

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const TaskType = "analyze-program-gaps"

type GapAnalyzer interface {
	Gaps(ctx context.Context, userID, programID string) (*models.GapReport, error)
}

type Handler struct {
	service GapAnalyzer
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(service GapAnalyzer, runner *camunda.Runner, log logger.Logger) *Handler {
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
	report, err := h.service.Gaps(ctx, input.UserID, input.ProgramID)
	if err != nil {
		return nil, err
	}

	gaps := report.Gaps
	if gaps == nil {
		gaps = []models.Gap{}
	}
	timeline := report.Timeline
	if timeline.Milestones == nil {
		timeline.Milestones = []models.Milestone{}
	}

	h.logger.Info("gap analysis complete", map[string]interface{}{
		"userId":    input.UserID,
		"programId": report.ProgramID,
		"gaps":      len(gaps),
		"maxMonths": timeline.MaxMonths,
	})

	return &Output{
		ProgramID:   report.ProgramID,
		ProgramName: report.ProgramName,
		IsEligible:  report.IsEligible,
		Gaps:        gaps,
		GapCount:    len(gaps),
		Timeline:    timeline,
	}, nil
}
