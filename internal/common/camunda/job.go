package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/mitchellh/mapstructure"

	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/common/observability"
	"immigration-advisor/internal/common/validation"
	"immigration-advisor/pkg/registry"
)

const defaultJobTimeout = 30 * time.Second

// JobSettings is everything a worker needs to know about one task type,
// resolved once at startup.
type JobSettings struct {
	TaskType      string
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxRetries    int
	InputSchema   *validation.Schema
}

// ResolveJob merges the activity registry entry for taskType with the
// worker's config section. An explicit workers.<taskType> section wins over
// the registry, which wins over the camunda defaults.
func ResolveJob(cfg *config.Config, reg *registry.ActivityRegistry, taskType string) (JobSettings, error) {
	settings := JobSettings{
		TaskType:      taskType,
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       config.GetDuration(cfg.Camunda.Timeout),
		MaxRetries:    3,
	}

	if activity, ok := reg.Find(taskType); ok {
		if d := activity.TimeoutDuration(); d > 0 {
			settings.Timeout = d
		}
		if activity.Retries > 0 {
			settings.MaxRetries = activity.Retries
		}
		schemaJSON, err := activity.InputSchemaJSON()
		if err != nil {
			return settings, fmt.Errorf("encode input schema for %s: %w", taskType, err)
		}
		if schemaJSON != "" {
			schema, err := validation.Compile(taskType, schemaJSON)
			if err != nil {
				return settings, err
			}
			settings.InputSchema = schema
		}
	}

	if wc, ok := cfg.Workers[taskType]; ok {
		settings.Enabled = wc.Enabled
		settings.MaxJobsActive = wc.MaxJobsActive
		settings.Timeout = config.GetDuration(wc.Timeout)
		settings.MaxRetries = wc.MaxRetries
	}

	if settings.MaxJobsActive <= 0 {
		settings.MaxJobsActive = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultJobTimeout
	}
	return settings, nil
}

// Runner carries the parts of job handling every advisor worker shares:
// variable decoding, the execution deadline, metrics and reporting the
// outcome back to the broker.
type Runner struct {
	settings JobSettings
	errors   *errors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
}

func NewRunner(settings JobSettings, obs *observability.Observability, log logger.Logger) *Runner {
	scoped := log.WithFields(map[string]interface{}{"taskType": settings.TaskType})
	return &Runner{
		settings: settings,
		errors:   errors.NewErrorHandler(scoped).WithMaxRetries(settings.MaxRetries),
		obs:      obs,
		logger:   scoped,
	}
}

func (r *Runner) Settings() JobSettings {
	return r.settings
}

// Decode validates the job variables against the task's input schema and
// decodes them into dst using its json tags.
func (r *Runner) Decode(job entities.Job, dst interface{}) error {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("job variables are not a JSON object: %v", err))
	}
	if r.settings.InputSchema != nil {
		if err := r.settings.InputSchema.ValidateValue(variables); err != nil {
			return errors.NewInvalidInputError(err.Error())
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  dst,
	})
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := decoder.Decode(variables); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}
	return nil
}

// Run executes exec under the task timeout and completes the job with its
// output, or hands the error to the ErrorHandler.
func (r *Runner) Run(client worker.JobClient, job entities.Job, exec func(ctx context.Context) (interface{}, error)) {
	start := time.Now()
	taskType := r.settings.TaskType

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"retries":            job.GetRetries(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), r.settings.Timeout)
	output, err := exec(ctx)
	cancel()

	// Reporting gets its own deadline so a job that ran out of time can
	// still be failed.
	reportCtx, reportCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer reportCancel()

	status := "completed"
	if err == nil {
		err = r.complete(reportCtx, client, job, output)
	}
	if err != nil {
		status = "failed"
		code := errors.AsStandard(err).Code
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(code)).Inc()
		r.errors.HandleJobError(reportCtx, client, job, err)
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	}

	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
	if r.obs != nil {
		r.obs.RecordJobProcessed(reportCtx, status)
		r.obs.RecordJobDuration(reportCtx, elapsed, status)
	}
}

func (r *Runner) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("encode job output: %w", err))
	}
	if _, err := cmd.Send(ctx); err != nil {
		// The broker will time the job out and hand it out again.
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return nil
	}
	r.logger.Info("job completed", map[string]interface{}{"jobKey": job.GetKey()})
	return nil
}
