package scenario

import (
	"context"

	"immigration-advisor/internal/engine/gaps"
	"immigration-advisor/internal/models"
)

const DefaultTopN = 10

// Evaluator is the part of the pipeline the simulator re-runs.
type Evaluator interface {
	Rank(ctx context.Context, profile *models.ApplicantProfile, programs []*models.Program) ([]models.ScoredProgram, error)
	Evaluate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.ScoredProgram, error)
}

type Simulator struct {
	evaluator Evaluator
	topN      int
}

func NewSimulator(evaluator Evaluator, topN int) *Simulator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Simulator{evaluator: evaluator, topN: topN}
}

// Simulate re-ranks programs for the patched profile and keeps the top N.
func (s *Simulator) Simulate(ctx context.Context, base *models.ApplicantProfile, change models.ScenarioChange, programs []*models.Program) (*models.ScenarioResult, error) {
	profile, err := Apply(base, change)
	if err != nil {
		return nil, err
	}

	ranked, err := s.evaluator.Rank(ctx, profile, programs)
	if err != nil {
		return nil, err
	}
	if len(ranked) > s.topN {
		ranked = ranked[:s.topN]
	}

	return &models.ScenarioResult{
		AppliedChange:  change,
		RankedPrograms: ranked,
		TotalPrograms:  len(programs),
	}, nil
}

// SimulateProgram evaluates a single program for the patched profile,
// including its gaps and closure timeline.
func (s *Simulator) SimulateProgram(ctx context.Context, base *models.ApplicantProfile, change models.ScenarioChange, program *models.Program) (*models.ScenarioResult, error) {
	profile, err := Apply(base, change)
	if err != nil {
		return nil, err
	}

	scored, err := s.evaluator.Evaluate(ctx, profile, program)
	if err != nil {
		return nil, err
	}
	timeline := gaps.EstimateTimeline(scored.Gaps)

	return &models.ScenarioResult{
		AppliedChange: change,
		Program:       &scored,
		Gaps:          scored.Gaps,
		Timeline:      &timeline,
		TotalPrograms: 1,
	}, nil
}
