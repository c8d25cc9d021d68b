// internal/common/camunda/worker.go
package camunda

import (
	"immigration-advisor/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler reports its own outcome to Zeebe through the job client.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for settings.TaskType. Closing the shared
// zbc client is left to the caller.
func NewWorker(client zbc.Client, settings JobSettings, handler JobHandler, log logger.Logger) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(settings.TaskType).
		Handler(handler.Handle).
		MaxJobsActive(settings.MaxJobsActive).
		Timeout(settings.Timeout).
		Open()

	w := &CamundaWorker{
		worker:   jobWorker,
		logger:   log.WithFields(map[string]interface{}{"taskType": settings.TaskType}),
		taskType: settings.TaskType,
	}
	w.logger.Info("worker started", map[string]interface{}{
		"maxJobsActive": settings.MaxJobsActive,
		"timeout":       settings.Timeout.String(),
	})
	return w
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
