package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// PredictorCalls counts calls to the prediction service by endpoint and
	// outcome (success, error, timeout, malformed, circuit_open).
	PredictorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_predictor_calls_total",
			Help: "Calls to the prediction service",
		},
		[]string{"endpoint", "outcome"},
	)

	PredictorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_predictor_fallbacks_total",
			Help: "Predictions served by the local fallback instead of the prediction service",
		},
		[]string{"estimator"},
	)

	UnsupportedCriteria = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_unsupported_criteria_total",
			Help: "Eligibility criteria that could not be machine-evaluated",
		},
		[]string{"kind"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_pipeline_duration_seconds",
			Help:    "End-to-end duration of one scoring pipeline run",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	ProgramsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_programs_evaluated_total",
			Help: "Programs evaluated, by eligibility outcome",
		},
		[]string{"eligible"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_lookups_total",
			Help: "Upstream cache lookups by resource and result",
		},
		[]string{"resource", "result"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "advisor_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"},
	)
)
