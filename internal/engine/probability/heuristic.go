package probability

import (
	"context"
	"fmt"
	"math"
	"time"

	"immigration-advisor/internal/engine/eligibility"
	"immigration-advisor/internal/models"
)

const defaultBaseProbability = 50.0

// Heuristic estimates success locally from the program's historical success
// rate and signed adjustments for each profile signal. It never fails.
type Heuristic struct {
	now func() time.Time
}

func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

type adjuster struct {
	score    float64
	positive []models.Factor
	negative []models.Factor
}

func (a *adjuster) add(delta float64, severity models.Severity, format string, args ...interface{}) {
	a.score += delta
	factor := models.Factor{Factor: fmt.Sprintf(format, args...), Impact: severity}
	if delta >= 0 {
		a.positive = append(a.positive, factor)
	} else {
		a.negative = append(a.negative, factor)
	}
}

func (h *Heuristic) Estimate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.SuccessEstimate, error) {
	base := defaultBaseProbability
	if program.HistoricalSuccessRate != nil {
		base = *program.HistoricalSuccessRate * 100
	}

	a := &adjuster{score: base, positive: []models.Factor{}, negative: []models.Factor{}}
	h.education(a, profile, program)
	h.experience(a, profile, program)
	h.language(a, profile, program)
	asOf, ok := eligibility.AsOf(ctx)
	if !ok {
		asOf = h.now()
	}
	h.age(a, profile, program, asOf)
	h.funds(a, profile, program)

	return models.SuccessEstimate{
		Probability:     int(math.Round(ClampProbability(a.score))),
		PositiveFactors: a.positive,
		NegativeFactors: a.negative,
		Notes:           "estimated from historical success rate and profile signals",
		Source:          models.SourceHeuristic,
	}, nil
}

func criterionOf(program *models.Program, kinds ...models.CriterionKind) (models.EligibilityCriterion, bool) {
	for _, c := range program.EligibilityCriteria {
		for _, k := range kinds {
			if c.Kind == k {
				return c, true
			}
		}
	}
	return models.EligibilityCriterion{}, false
}

func (h *Heuristic) education(a *adjuster, profile *models.ApplicantProfile, program *models.Program) {
	level, ok := profile.EducationLevel()
	if !ok {
		return
	}
	rank, ok := eligibility.EducationRank(level)
	if !ok {
		return
	}

	c, hasCriterion := criterionOf(program, models.CriterionEducation)
	if !hasCriterion {
		if rank >= 4 {
			a.add(5, models.SeverityMedium, "Advanced degree (%s)", level)
		}
		return
	}

	verdict := eligibility.EducationRule(eligibility.Subject{Profile: profile, Program: program}, c)
	if verdict.RequiredNumber == nil {
		return
	}
	required := int(*verdict.RequiredNumber)
	switch {
	case rank > required:
		a.add(5, models.SeverityMedium, "Education exceeds the program requirement")
	case rank == required:
		a.add(2, models.SeverityLow, "Education meets the program requirement")
	default:
		a.add(-15, models.SeverityHigh, "Education below the program requirement")
	}
}

func (h *Heuristic) experience(a *adjuster, profile *models.ApplicantProfile, program *models.Program) {
	years, ok := profile.ExperienceYears()
	c, hasCriterion := criterionOf(program, models.CriterionWorkExperience)
	required, hasRequired := c.MinNumber()

	if !hasCriterion || !hasRequired {
		if ok && years >= 5 {
			a.add(5, models.SeverityMedium, "%s years of work experience", eligibility.FormatNumber(years))
		}
		return
	}
	if !ok {
		a.add(-10, models.SeverityMedium, "Work experience not documented")
		return
	}

	diff := years - required
	switch {
	case diff >= 2:
		a.add(10, models.SeverityHigh, "Work experience exceeds requirement by %s years", eligibility.FormatNumber(diff))
	case diff >= 0:
		a.add(5, models.SeverityMedium, "Work experience meets requirement")
	case diff <= -2:
		a.add(-20, models.SeverityHigh, "Work experience short by %s years", eligibility.FormatNumber(-diff))
	default:
		a.add(-10, models.SeverityMedium, "Work experience short by %s years", eligibility.FormatNumber(-diff))
	}
}

func (h *Heuristic) language(a *adjuster, profile *models.ApplicantProfile, program *models.Program) {
	c, ok := criterionOf(program, models.CriterionLanguage)
	if !ok {
		return
	}

	verdict := eligibility.LanguageRule(eligibility.Subject{Profile: profile, Program: program}, c)
	if verdict.Status == models.VerdictMissing {
		a.add(-15, models.SeverityHigh, "No proficiency record for the required language")
		return
	}
	if !verdict.Met {
		a.add(-10, models.SeverityMedium, "Language proficiency not backed by a formal test")
		return
	}

	minScore, hasMin := c.MinFieldNumber("score")
	if !hasMin {
		minScore, hasMin = c.MinNumber()
	}
	if score, ok := bestTestScore(profile); ok && hasMin && score < minScore {
		a.add(-10, models.SeverityMedium, "Language test score %s below the expected %s",
			eligibility.FormatNumber(score), eligibility.FormatNumber(minScore))
		return
	}
	a.add(8, models.SeverityMedium, "Formal language test on record")
}

func bestTestScore(profile *models.ApplicantProfile) (float64, bool) {
	best, found := 0.0, false
	for _, lp := range profile.LanguageProficiency {
		if lp.HasTestResult() && (!found || *lp.OverallScore > best) {
			best, found = *lp.OverallScore, true
		}
	}
	return best, found
}

func (h *Heuristic) age(a *adjuster, profile *models.ApplicantProfile, program *models.Program, asOf time.Time) {
	birth, ok := profile.BirthDate()
	if !ok {
		return
	}
	age := float64(eligibility.AgeOn(birth, asOf))

	c, hasCriterion := criterionOf(program, models.CriterionAge)
	if hasCriterion {
		lo, hasLo := c.MinNumber()
		hi, hasHi := c.MaxNumber()
		if (hasLo && age < lo) || (hasHi && age > hi) {
			a.add(-20, models.SeverityHigh, "Age %s outside the program's range", eligibility.FormatNumber(age))
			return
		}
		if hasLo || hasHi {
			a.add(5, models.SeverityLow, "Age within the program's range")
			return
		}
	}

	switch {
	case age >= 25 && age <= 35:
		a.add(5, models.SeverityLow, "Age in the most favourable band")
	case age > 45:
		a.add(-5, models.SeverityMedium, "Age above 45 reduces points in most systems")
	}
}

func (h *Heuristic) funds(a *adjuster, profile *models.ApplicantProfile, program *models.Program) {
	c, ok := criterionOf(program, models.CriterionFinancial, models.CriterionInvestment)
	if !ok {
		return
	}
	required, ok := c.MinNumber()
	if !ok {
		required, ok = c.MinFieldNumber("amount")
	}
	if !ok {
		return
	}

	funds, ok := profile.AvailableFunds()
	switch {
	case !ok:
		a.add(-5, models.SeverityLow, "Available funds not documented")
	case funds >= required*1.5:
		a.add(10, models.SeverityHigh, "Funds well above the requirement")
	case funds >= required:
		a.add(5, models.SeverityMedium, "Funds meet the requirement")
	default:
		a.add(-15, models.SeverityHigh, "Funds below the requirement")
	}
}
