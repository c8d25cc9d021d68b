package probability

import (
	"context"

	"immigration-advisor/internal/models"
)

// Estimator produces a success probability on the 0..100 scale.
type Estimator interface {
	Estimate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.SuccessEstimate, error)
}

// MatchScorer produces a profile/program compatibility score on the 0..1
// scale.
type MatchScorer interface {
	Score(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.MatchEstimate, error)
}

const NeutralMatchScore = 0.5

// NeutralMatcher stands in for the match model when it cannot be reached.
type NeutralMatcher struct{}

func (NeutralMatcher) Score(_ context.Context, _ *models.ApplicantProfile, _ *models.Program) (models.MatchEstimate, error) {
	return models.MatchEstimate{
		Score:           NeutralMatchScore,
		PositiveFactors: []models.Factor{},
		NegativeFactors: []models.Factor{},
		Source:          models.SourceNeutral,
	}, nil
}

func ClampProbability(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func ClampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
