package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/common/observability"
	"immigration-advisor/internal/engine/eligibility"
	"immigration-advisor/internal/engine/gaps"
	"immigration-advisor/internal/engine/probability"
	"immigration-advisor/internal/engine/scoring"
	"immigration-advisor/internal/models"
)

const DefaultConcurrency = 8

// Pipeline scores programs against one profile: eligibility and gaps run
// inline, predictor calls fan out with bounded concurrency.
type Pipeline struct {
	evaluator   *eligibility.Evaluator
	success     probability.Estimator
	match       probability.MatchScorer
	concurrency int
	logger      logger.Logger
	now         func() time.Time
}

func New(evaluator *eligibility.Evaluator, success probability.Estimator, match probability.MatchScorer, concurrency int, log logger.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		evaluator:   evaluator,
		success:     success,
		match:       match,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:         time.Now,
	}
}

// Rank evaluates every program and returns them ranked. A cancelled context
// discards partial results.
func (p *Pipeline) Rank(ctx context.Context, profile *models.ApplicantProfile, programs []*models.Program) ([]models.ScoredProgram, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())
	}()

	ctx, asOf := p.pin(ctx)
	results := make([]models.ScoredProgram, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, program := range programs {
		i, program := i, program
		g.Go(func() error {
			sp, err := p.evaluateAt(gctx, profile, program, asOf)
			if err != nil {
				return err
			}
			results[i] = sp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, p.wrap(ctx, err)
	}

	p.logger.Debug("programs ranked", map[string]interface{}{
		"userId":   profile.UserID,
		"programs": len(programs),
	})
	return scoring.Rank(results), nil
}

// Evaluate scores a single program.
func (p *Pipeline) Evaluate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.ScoredProgram, error) {
	ctx, asOf := p.pin(ctx)
	sp, err := p.evaluateAt(ctx, profile, program, asOf)
	if err != nil {
		return models.ScoredProgram{}, p.wrap(ctx, err)
	}
	return sp, nil
}

// Success runs only the success estimator for one program.
func (p *Pipeline) Success(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.SuccessEstimate, error) {
	ctx, _ = p.pin(ctx)
	est, err := p.success.Estimate(ctx, profile, program)
	if err != nil {
		return models.SuccessEstimate{}, p.wrap(ctx, err)
	}
	return est, nil
}

// Eligibility runs the evaluator and gap analyzer without any predictor
// calls.
func (p *Pipeline) Eligibility(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (bool, []models.CriterionVerdict, []models.Gap) {
	_, asOf := p.pin(ctx)
	eligible, verdicts := p.evaluator.EvaluateAt(profile, program, asOf)
	return eligible, verdicts, gaps.Analyze(verdicts)
}

// Pin fixes the evaluation instant for ctx unless one is already set.
// Operations that combine several pipeline calls pin once up front.
func (p *Pipeline) Pin(ctx context.Context) context.Context {
	ctx, _ = p.pin(ctx)
	return ctx
}

func (p *Pipeline) pin(ctx context.Context) (context.Context, time.Time) {
	if asOf, ok := eligibility.AsOf(ctx); ok {
		return ctx, asOf
	}
	asOf := p.now()
	return eligibility.WithAsOf(ctx, asOf), asOf
}

func (p *Pipeline) evaluateAt(ctx context.Context, profile *models.ApplicantProfile, program *models.Program, asOf time.Time) (models.ScoredProgram, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanEvaluateProgram, observability.ProgramAttrs(program.ID)...)
	defer span.End()

	eligible, verdicts := p.evaluator.EvaluateAt(profile, program, asOf)
	programGaps := gaps.Analyze(verdicts)

	match, err := p.match.Score(ctx, profile, program)
	if err != nil {
		return models.ScoredProgram{}, err
	}
	success, err := p.success.Estimate(ctx, profile, program)
	if err != nil {
		return models.ScoredProgram{}, err
	}

	return scoring.Score(scoring.Input{
		Program:    program,
		IsEligible: eligible,
		Verdicts:   verdicts,
		Gaps:       programGaps,
		Match:      match,
		Success:    success,
		Preference: scoring.Preference(profile, program),
	}), nil
}

func (p *Pipeline) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.NewRequestCancelledError(ctxErr)
	}
	return errors.AsStandard(err)
}
