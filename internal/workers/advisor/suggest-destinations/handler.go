// internal/workers/advisor/suggest-destinations/handler.go
package suggestdestinations

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const TaskType = "suggest-destinations"

type DestinationAdvisor interface {
	SuggestDestinations(ctx context.Context, userID string) ([]models.DestinationSuggestion, error)
}

type Handler struct {
	service DestinationAdvisor
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(service DestinationAdvisor, runner *camunda.Runner, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		runner:  runner,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := h.runner.Decode(job, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	destinations, err := h.service.SuggestDestinations(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if destinations == nil {
		destinations = []models.DestinationSuggestion{}
	}

	output := &Output{Destinations: destinations}
	if len(destinations) > 0 {
		output.TopDestination = destinations[0].CountryID
	}

	h.logger.Info("destinations suggested", map[string]interface{}{
		"userId":         input.UserID,
		"count":          len(destinations),
		"topDestination": output.TopDestination,
	})
	return output, nil
}
