package scoring

import (
	"fmt"
	"math"
	"sort"

	"immigration-advisor/internal/engine/probability"
	"immigration-advisor/internal/models"
)

const (
	MatchWeight      = 0.5
	SuccessWeight    = 0.3
	PreferenceWeight = 0.2

	BasePreference    = 0.5
	MatchedPreference = 0.7
)

// Aggregate blends the three signals into the overall score, clamped to
// [0,1].
func Aggregate(matchScore, successProbability, preferenceScore float64) float64 {
	overall := MatchWeight*probability.ClampUnit(matchScore) +
		SuccessWeight*probability.ClampUnit(successProbability) +
		PreferenceWeight*probability.ClampUnit(preferenceScore)
	return round4(probability.ClampUnit(overall))
}

// Preference is 0.7 when the program's country or category appears anywhere
// in the applicant's ranked preferences, otherwise 0.5. Rank position does
// not change the score.
func Preference(profile *models.ApplicantProfile, program *models.Program) float64 {
	if profile.PrefersCountry(program.CountryID) || profile.PrefersPathway(program.Category) {
		return MatchedPreference
	}
	return BasePreference
}

// Input carries everything computed for one program before aggregation.
type Input struct {
	Program    *models.Program
	IsEligible bool
	Verdicts   []models.CriterionVerdict
	Gaps       []models.Gap
	Match      models.MatchEstimate
	Success    models.SuccessEstimate
	Preference float64
}

// Score assembles the ScoredProgram for one program. Ineligible programs get
// an overall score of 0 and an ineligibility summary whatever their other
// scores are.
func Score(in Input) models.ScoredProgram {
	success := probability.ClampProbability(float64(in.Success.Probability)) / 100
	match := probability.ClampUnit(in.Match.Score)
	pref := probability.ClampUnit(in.Preference)

	sp := models.ScoredProgram{
		ProgramID:          in.Program.ID,
		ProgramName:        in.Program.Name,
		CountryID:          in.Program.CountryID,
		CountryName:        in.Program.CountryName,
		Category:           in.Program.Category,
		IsEligible:         in.IsEligible,
		MatchScore:         round4(match),
		SuccessProbability: round4(success),
		PreferenceScore:    round4(pref),
		Gaps:               in.Gaps,
		Verdicts:           in.Verdicts,
		MatchSource:        in.Match.Source,
		SuccessSource:      in.Success.Source,
	}
	if sp.Gaps == nil {
		sp.Gaps = []models.Gap{}
	}

	if in.IsEligible {
		sp.OverallScore = Aggregate(match, success, pref)
	}
	sp.Explanation = Explain(in, sp.OverallScore)
	return sp
}

// Explain merges predictor factors with preference and eligibility factors.
func Explain(in Input, overall float64) models.Explanation {
	positive := make([]models.Factor, 0)
	negative := make([]models.Factor, 0)

	positive = append(positive, in.Match.PositiveFactors...)
	positive = appendUnique(positive, in.Success.PositiveFactors...)
	negative = append(negative, in.Match.NegativeFactors...)
	negative = appendUnique(negative, in.Success.NegativeFactors...)

	if in.Preference >= MatchedPreference {
		positive = append(positive, models.Factor{Factor: "Matches your destination or pathway preferences", Impact: models.SeverityMedium})
	}
	for _, g := range in.Gaps {
		negative = append(negative, models.Factor{Factor: "Unmet requirement: " + g.Name, Impact: models.SeverityHigh})
	}

	return models.Explanation{
		PositiveFactors: positive,
		NegativeFactors: negative,
		Summary:         summarize(in, overall),
	}
}

func summarize(in Input, overall float64) string {
	if !in.IsEligible {
		return fmt.Sprintf("You are not currently eligible for %s: %d required criteria are unmet.", in.Program.Name, len(in.Gaps))
	}
	switch {
	case overall >= 0.75:
		return fmt.Sprintf("%s is a strong match for your profile.", in.Program.Name)
	case overall >= 0.5:
		return fmt.Sprintf("%s is a good match for your profile.", in.Program.Name)
	default:
		return fmt.Sprintf("%s is a moderate match for your profile.", in.Program.Name)
	}
}

func appendUnique(dst []models.Factor, factors ...models.Factor) []models.Factor {
	seen := make(map[string]struct{}, len(dst))
	for _, f := range dst {
		seen[f.Factor] = struct{}{}
	}
	for _, f := range factors {
		if _, ok := seen[f.Factor]; ok {
			continue
		}
		seen[f.Factor] = struct{}{}
		dst = append(dst, f)
	}
	return dst
}

// Rank sorts by overall score, descending. Ties keep their input order.
func Rank(programs []models.ScoredProgram) []models.ScoredProgram {
	ranked := make([]models.ScoredProgram, len(programs))
	copy(ranked, programs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OverallScore > ranked[j].OverallScore
	})
	return ranked
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
