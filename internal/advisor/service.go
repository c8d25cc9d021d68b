// internal/advisor/service.go
package advisor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/observability"
	"immigration-advisor/internal/engine/gaps"
	"immigration-advisor/internal/engine/pipeline"
	"immigration-advisor/internal/engine/scenario"
	"immigration-advisor/internal/models"
	"immigration-advisor/internal/upstream"
)

const (
	DefaultDestinationTopN = 5
	MaxLimit               = 100
)

// Operation names, shared by metrics, spans and the job workers.
const (
	OpRecommend    = "recommend"
	OpProbability  = "probability"
	OpGaps         = "gaps"
	OpSimulate     = "simulate"
	OpDestinations = "destinations"
)

type Options struct {
	ScenarioTopN    int
	DestinationTopN int
}

// Service answers the five advisor requests. It holds no per-request state
// and is safe for concurrent use by the HTTP server and the job workers.
type Service struct {
	profiles        upstream.ProfileSource
	programs        upstream.ProgramSource
	pipeline        *pipeline.Pipeline
	simulator       *scenario.Simulator
	obs             *observability.Observability
	destinationTopN int
	logger          logger.Logger
}

func NewService(profiles upstream.ProfileSource, programs upstream.ProgramSource, p *pipeline.Pipeline, opts Options, obs *observability.Observability, log logger.Logger) *Service {
	topN := opts.DestinationTopN
	if topN <= 0 {
		topN = DefaultDestinationTopN
	}
	return &Service{
		profiles:        profiles,
		programs:        programs,
		pipeline:        p,
		simulator:       scenario.NewSimulator(p, opts.ScenarioTopN),
		obs:             obs,
		destinationTopN: topN,
		logger:          log.WithFields(map[string]interface{}{"component": "advisor"}),
	}
}

type RecommendRequest struct {
	UserID string
	Filter models.ProgramFilter
	Limit  int // 0 returns every program
}

type Recommendations struct {
	Programs      []models.ScoredProgram `json:"programs"`
	TotalPrograms int                    `json:"totalPrograms"`
	EligibleCount int                    `json:"eligibleCount"`
}

// Recommend ranks every program matching the filter for the user.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (result *Recommendations, err error) {
	ctx, done := s.begin(ctx, OpRecommend, observability.SpanRecommend, attribute.String("advisor.category", req.Filter.Category), attribute.String("advisor.country", req.Filter.CountryID))
	defer func() { done(err) }()

	if req.Limit < 0 || req.Limit > MaxLimit {
		return nil, errors.NewInvalidInputError("limit must be between 0 and 100")
	}

	profile, programs, err := s.loadAll(ctx, req.UserID, req.Filter)
	if err != nil {
		return nil, err
	}

	ranked, err := s.pipeline.Rank(ctx, profile, programs)
	if err != nil {
		return nil, err
	}

	eligible := 0
	for _, sp := range ranked {
		if sp.IsEligible {
			eligible++
		}
	}
	total := len(ranked)
	if req.Limit > 0 && len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	s.logger.Info("recommendations computed", map[string]interface{}{
		"userId":   req.UserID,
		"programs": total,
		"eligible": eligible,
	})
	return &Recommendations{Programs: ranked, TotalPrograms: total, EligibleCount: eligible}, nil
}

// Probability estimates the user's chance of success for one program.
func (s *Service) Probability(ctx context.Context, userID, programID string) (result *models.ProbabilityResult, err error) {
	ctx, done := s.begin(ctx, OpProbability, observability.SpanProbability, observability.ProgramAttrs(programID)...)
	defer func() { done(err) }()

	profile, program, err := s.loadOne(ctx, userID, programID)
	if err != nil {
		return nil, err
	}

	ctx = s.pipeline.Pin(ctx)
	est, err := s.pipeline.Success(ctx, profile, program)
	if err != nil {
		return nil, err
	}
	eligible, _, _ := s.pipeline.Eligibility(ctx, profile, program)

	return &models.ProbabilityResult{
		ProgramID:   program.ID,
		ProgramName: program.Name,
		Estimate:    est,
		IsEligible:  eligible,
	}, nil
}

// Gaps lists the unmet requirements for one program with a closure
// timeline. No predictor calls are made.
func (s *Service) Gaps(ctx context.Context, userID, programID string) (result *models.GapReport, err error) {
	ctx, done := s.begin(ctx, OpGaps, observability.SpanGaps, observability.ProgramAttrs(programID)...)
	defer func() { done(err) }()

	profile, program, err := s.loadOne(ctx, userID, programID)
	if err != nil {
		return nil, err
	}

	eligible, _, programGaps := s.pipeline.Eligibility(ctx, profile, program)
	return &models.GapReport{
		ProgramID:   program.ID,
		ProgramName: program.Name,
		IsEligible:  eligible,
		Gaps:        programGaps,
		Timeline:    gaps.EstimateTimeline(programGaps),
	}, nil
}

type SimulateRequest struct {
	UserID    string
	Changes   models.ScenarioChange
	ProgramID string // optional, evaluates only this program
}

// Simulate re-runs the pipeline for the user's profile with Changes applied.
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (result *models.ScenarioResult, err error) {
	ctx, done := s.begin(ctx, OpSimulate, observability.SpanSimulate, attribute.Int("advisor.change_keys", len(req.Changes)), attribute.String("advisor.program_id", req.ProgramID))
	defer func() { done(err) }()

	if req.Changes == nil {
		return nil, errors.NewInvalidInputError("profileChanges is required")
	}

	if req.ProgramID != "" {
		profile, program, err := s.loadOne(ctx, req.UserID, req.ProgramID)
		if err != nil {
			return nil, err
		}
		return s.simulator.SimulateProgram(ctx, profile, req.Changes, program)
	}

	profile, programs, err := s.loadAll(ctx, req.UserID, models.ProgramFilter{})
	if err != nil {
		return nil, err
	}
	return s.simulator.Simulate(ctx, profile, req.Changes, programs)
}

// SuggestDestinations ranks countries by the best program each offers.
func (s *Service) SuggestDestinations(ctx context.Context, userID string) (result []models.DestinationSuggestion, err error) {
	ctx, done := s.begin(ctx, OpDestinations, observability.SpanDestinations)
	defer func() { done(err) }()

	profile, programs, err := s.loadAll(ctx, userID, models.ProgramFilter{})
	if err != nil {
		return nil, err
	}
	ranked, err := s.pipeline.Rank(ctx, profile, programs)
	if err != nil {
		return nil, err
	}
	return SuggestDestinations(profile, ranked, s.destinationTopN), nil
}

func (s *Service) loadAll(ctx context.Context, userID string, filter models.ProgramFilter) (*models.ApplicantProfile, []*models.Program, error) {
	if userID == "" {
		return nil, nil, errors.NewMissingProfileRefError()
	}

	var (
		profile  *models.ApplicantProfile
		programs []*models.Program
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.profiles.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		programs, err = s.programs.ListPrograms(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, s.wrap(ctx, err)
	}
	return profile, programs, nil
}

func (s *Service) loadOne(ctx context.Context, userID, programID string) (*models.ApplicantProfile, *models.Program, error) {
	if err := ValidateProgramID(programID); err != nil {
		return nil, nil, err
	}
	if userID == "" {
		return nil, nil, errors.NewMissingProfileRefError()
	}

	var (
		profile *models.ApplicantProfile
		program *models.Program
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.profiles.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		program, err = s.programs.GetProgram(gctx, programID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, s.wrap(ctx, err)
	}
	return profile, program, nil
}

func (s *Service) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.NewRequestCancelledError(ctxErr)
	}
	return errors.AsStandard(err)
}

// begin opens the operation span; the returned func ends it and records the
// request metric.
func (s *Service) begin(ctx context.Context, operation, spanName string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, spanName, attrs...)

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			stdErr := errors.AsStandard(err)
			status = string(stdErr.Code)
			span.RecordError(err)
			span.SetStatus(codes.Error, stdErr.Message)
		}
		span.End()
		if s.obs != nil {
			s.obs.RecordRequest(ctx, operation, status, time.Since(start))
		}
	}
}
