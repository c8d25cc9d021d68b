package probability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/resilience"
	"immigration-advisor/internal/engine/eligibility"
	"immigration-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }

func fixedHeuristic() *Heuristic {
	return &Heuristic{now: func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }}
}

func createTestProgram(rate *float64) *models.Program {
	return &models.Program{
		ID:                    "prog-1",
		Name:                  "Skilled Worker",
		CountryID:             "ca",
		HistoricalSuccessRate: rate,
		EligibilityCriteria: []models.EligibilityCriterion{
			{Kind: models.CriterionEducation, MinValue: models.StringBound("bachelor"), IsRequired: true},
			{Kind: models.CriterionWorkExperience, MinValue: models.NumberBound(3), IsRequired: true},
			{Kind: models.CriterionLanguage, Name: "English", MinValue: models.StringBound("English"), IsRequired: true},
			{Kind: models.CriterionAge, MinValue: models.NumberBound(18), MaxValue: models.NumberBound(45)},
			{Kind: models.CriterionFinancial, MinValue: models.NumberBound(10000), IsRequired: true},
		},
	}
}

func strongProfile() *models.ApplicantProfile {
	return &models.ApplicantProfile{
		UserID:              "user-1",
		PersonalInfo:        &models.PersonalInfo{DateOfBirth: str("1990-03-20")},
		Education:           &models.Education{HighestLevel: "master"},
		WorkExperience:      &models.WorkExperience{TotalYears: f64(6)},
		LanguageProficiency: []models.LanguageProficiency{{Language: "English", TestType: "IELTS", OverallScore: f64(7)}},
		FinancialInfo:       &models.FinancialInfo{LiquidAssets: f64(20000)},
	}
}

func weakProfile() *models.ApplicantProfile {
	return &models.ApplicantProfile{
		UserID:         "user-2",
		PersonalInfo:   &models.PersonalInfo{DateOfBirth: str("1975-01-01")},
		Education:      &models.Education{HighestLevel: "high school"},
		WorkExperience: &models.WorkExperience{TotalYears: f64(0.5)},
		FinancialInfo:  &models.FinancialInfo{LiquidAssets: f64(1000)},
	}
}

func TestHeuristic_Estimate(t *testing.T) {
	tests := []struct {
		name         string
		profile      *models.ApplicantProfile
		program      *models.Program
		want         int
		wantPositive int
		wantNegative int
	}{
		{
			name:    "no signals keeps neutral base",
			profile: &models.ApplicantProfile{UserID: "u"},
			program: &models.Program{ID: "p"},
			want:    50,
		},
		{
			name:    "historical rate is the base",
			profile: &models.ApplicantProfile{UserID: "u"},
			program: &models.Program{ID: "p", HistoricalSuccessRate: f64(0.72)},
			want:    72,
		},
		{
			name:         "strong profile adds every signal",
			profile:      strongProfile(),
			program:      createTestProgram(f64(0.6)),
			want:         98,
			wantPositive: 5,
		},
		{
			name:         "clamped at 100",
			profile:      strongProfile(),
			program:      createTestProgram(f64(0.95)),
			want:         100,
			wantPositive: 5,
		},
		{
			name:         "weak profile clamped at 0",
			profile:      weakProfile(),
			program:      createTestProgram(f64(0.3)),
			want:         0,
			wantNegative: 5,
		},
	}

	h := fixedHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := h.Estimate(context.Background(), tt.profile, tt.program)

			require.NoError(t, err)
			assert.Equal(t, tt.want, est.Probability)
			assert.Equal(t, models.SourceHeuristic, est.Source)
			assert.Len(t, est.PositiveFactors, tt.wantPositive)
			assert.Len(t, est.NegativeFactors, tt.wantNegative)
			for _, f := range append(est.PositiveFactors, est.NegativeFactors...) {
				assert.Contains(t, []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh}, f.Impact)
			}
		})
	}
}

type stubEstimator struct {
	calls int32
	fn    func(ctx context.Context) (models.SuccessEstimate, error)
}

func (s *stubEstimator) Estimate(ctx context.Context, _ *models.ApplicantProfile, _ *models.Program) (models.SuccessEstimate, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.fn(ctx)
}

func remoteResult(p int) func(context.Context) (models.SuccessEstimate, error) {
	return func(context.Context) (models.SuccessEstimate, error) {
		return models.SuccessEstimate{Probability: p, Source: models.SourceModel}, nil
	}
}

func newBreaker(t *testing.T, failures int) *resilience.Breaker {
	return resilience.NewBreaker("predictor", resilience.BreakerConfig{
		FailureThreshold: failures,
		SuccessThreshold: 1,
		OpenTimeout:      time.Hour,
	}, logger.NewTestLogger(t))
}

func TestResilientEstimator_UsesRemoteWhenHealthy(t *testing.T) {
	remote := &stubEstimator{fn: remoteResult(81)}
	r := NewResilientEstimator(remote, fixedHeuristic(), newBreaker(t, 3), time.Second, logger.NewTestLogger(t))

	est, err := r.Estimate(context.Background(), strongProfile(), createTestProgram(nil))

	require.NoError(t, err)
	assert.Equal(t, 81, est.Probability)
	assert.Equal(t, models.SourceModel, est.Source)
}

func TestResilientEstimator_FallsBackOnError(t *testing.T) {
	remote := &stubEstimator{fn: func(context.Context) (models.SuccessEstimate, error) {
		return models.SuccessEstimate{}, errors.New("connection refused")
	}}
	r := NewResilientEstimator(remote, fixedHeuristic(), newBreaker(t, 3), time.Second, logger.NewTestLogger(t))

	est, err := r.Estimate(context.Background(), strongProfile(), createTestProgram(f64(0.6)))

	require.NoError(t, err)
	assert.Equal(t, models.SourceHeuristic, est.Source)
	assert.Equal(t, 98, est.Probability)
}

func TestResilientEstimator_FallsBackOnTimeout(t *testing.T) {
	remote := &stubEstimator{fn: func(ctx context.Context) (models.SuccessEstimate, error) {
		<-ctx.Done()
		return models.SuccessEstimate{}, ctx.Err()
	}}
	r := NewResilientEstimator(remote, fixedHeuristic(), newBreaker(t, 3), 20*time.Millisecond, logger.NewTestLogger(t))

	start := time.Now()
	est, err := r.Estimate(context.Background(), strongProfile(), createTestProgram(nil))

	require.NoError(t, err)
	assert.Equal(t, models.SourceHeuristic, est.Source)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResilientEstimator_OpenCircuitSkipsRemote(t *testing.T) {
	remote := &stubEstimator{fn: func(context.Context) (models.SuccessEstimate, error) {
		return models.SuccessEstimate{}, errors.New("503")
	}}
	breaker := newBreaker(t, 2)
	r := NewResilientEstimator(remote, fixedHeuristic(), breaker, time.Second, logger.NewTestLogger(t))

	for i := 0; i < 5; i++ {
		est, err := r.Estimate(context.Background(), strongProfile(), createTestProgram(nil))
		require.NoError(t, err)
		assert.Equal(t, models.SourceHeuristic, est.Source)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&remote.calls))
	assert.Equal(t, resilience.StateOpen, breaker.State())
}

func TestResilientEstimator_CancelledRequestReturnsError(t *testing.T) {
	remote := &stubEstimator{fn: remoteResult(60)}
	r := NewResilientEstimator(remote, fixedHeuristic(), newBreaker(t, 3), time.Second, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Estimate(ctx, strongProfile(), createTestProgram(nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&remote.calls))
}

func TestResilientEstimator_ClampsRemoteValue(t *testing.T) {
	remote := &stubEstimator{fn: remoteResult(140)}
	r := NewResilientEstimator(remote, fixedHeuristic(), newBreaker(t, 3), time.Second, logger.NewTestLogger(t))

	est, err := r.Estimate(context.Background(), strongProfile(), createTestProgram(nil))

	require.NoError(t, err)
	assert.Equal(t, 100, est.Probability)
}

type failingMatcher struct{}

func (failingMatcher) Score(context.Context, *models.ApplicantProfile, *models.Program) (models.MatchEstimate, error) {
	return models.MatchEstimate{}, errors.New("malformed")
}

func TestResilientMatcher_FallsBackToNeutral(t *testing.T) {
	r := NewResilientMatcher(failingMatcher{}, NeutralMatcher{}, newBreaker(t, 3), time.Second, logger.NewTestLogger(t))

	est, err := r.Score(context.Background(), strongProfile(), createTestProgram(nil))

	require.NoError(t, err)
	assert.Equal(t, NeutralMatchScore, est.Score)
	assert.Equal(t, models.SourceNeutral, est.Source)
}

func TestHeuristic_AgeUsesPinnedInstant(t *testing.T) {
	h := fixedHeuristic()
	program := &models.Program{
		ID: "prog-age",
		EligibilityCriteria: []models.EligibilityCriterion{
			{Kind: models.CriterionAge, MaxValue: models.NumberBound(44), IsRequired: true},
		},
	}
	profile := &models.ApplicantProfile{PersonalInfo: &models.PersonalInfo{DateOfBirth: str("1980-06-16")}}

	within, err := h.Estimate(context.Background(), profile, program)
	require.NoError(t, err)
	assert.Contains(t, within.PositiveFactors, models.Factor{Factor: "Age within the program's range", Impact: models.SeverityLow})

	ctx := eligibility.WithAsOf(context.Background(), time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	outside, err := h.Estimate(ctx, profile, program)
	require.NoError(t, err)
	assert.Contains(t, outside.NegativeFactors, models.Factor{Factor: "Age 45 outside the program's range", Impact: models.SeverityHigh})
	assert.Less(t, outside.Probability, within.Probability)
}
