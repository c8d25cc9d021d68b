package probability

import (
	"context"
	"time"

	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/common/resilience"
	"immigration-advisor/internal/models"
)

type guard struct {
	name    string
	timeout time.Duration
	breaker *resilience.Breaker
	logger  logger.Logger
}

// call runs primary under the per-call timeout and the breaker. Any failure
// falls back unless the caller's own context is done, in which case the
// caller's error is returned and no fallback value is produced.
func call[T any](ctx context.Context, g guard, programID string, primary, fallback func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := zero, g.breaker.Allow()
	if err == nil {
		result, err = primary(callCtx)
		if ctx.Err() == nil {
			g.breaker.Mark(err)
		} else {
			g.breaker.Release()
		}
	}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}

	metrics.PredictorFallbacks.WithLabelValues(g.name).Inc()
	g.logger.Warn("prediction unavailable, using fallback", map[string]interface{}{
		"programId": programID,
		"error":     err.Error(),
		"breaker":   g.breaker.State().String(),
	})
	return fallback(ctx)
}

// ResilientEstimator prefers the remote estimator and substitutes the
// heuristic on timeout, error, malformed data or an open circuit.
type ResilientEstimator struct {
	primary  Estimator
	fallback Estimator
	guard    guard
}

func NewResilientEstimator(primary, fallback Estimator, breaker *resilience.Breaker, timeout time.Duration, log logger.Logger) *ResilientEstimator {
	return &ResilientEstimator{
		primary:  primary,
		fallback: fallback,
		guard: guard{
			name:    "success_probability",
			timeout: timeout,
			breaker: breaker,
			logger:  log.WithFields(map[string]interface{}{"component": "success-estimator"}),
		},
	}
}

func (r *ResilientEstimator) Estimate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.SuccessEstimate, error) {
	est, err := call(ctx, r.guard, program.ID,
		func(ctx context.Context) (models.SuccessEstimate, error) {
			return r.primary.Estimate(ctx, profile, program)
		},
		func(ctx context.Context) (models.SuccessEstimate, error) {
			return r.fallback.Estimate(ctx, profile, program)
		})
	if err != nil {
		return est, err
	}
	est.Probability = int(ClampProbability(float64(est.Probability)))
	return est, nil
}

// ResilientMatcher does the same for match scores, falling back to a neutral
// score.
type ResilientMatcher struct {
	primary  MatchScorer
	fallback MatchScorer
	guard    guard
}

func NewResilientMatcher(primary, fallback MatchScorer, breaker *resilience.Breaker, timeout time.Duration, log logger.Logger) *ResilientMatcher {
	return &ResilientMatcher{
		primary:  primary,
		fallback: fallback,
		guard: guard{
			name:    "match_score",
			timeout: timeout,
			breaker: breaker,
			logger:  log.WithFields(map[string]interface{}{"component": "match-scorer"}),
		},
	}
}

func (r *ResilientMatcher) Score(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.MatchEstimate, error) {
	est, err := call(ctx, r.guard, program.ID,
		func(ctx context.Context) (models.MatchEstimate, error) {
			return r.primary.Score(ctx, profile, program)
		},
		func(ctx context.Context) (models.MatchEstimate, error) {
			return r.fallback.Score(ctx, profile, program)
		})
	if err != nil {
		return est, err
	}
	est.Score = ClampUnit(est.Score)
	return est, nil
}
