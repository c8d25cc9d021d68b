package eligibility

import (
	"context"
	"time"

	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/models"
)

// Subject is what a rule sees: the profile and program under evaluation
// plus values derived once per evaluation.
type Subject struct {
	Profile *models.ApplicantProfile
	Program *models.Program
	Age     int
	HasAge  bool
}

type asOfKey struct{}

// WithAsOf pins the instant every age computation under ctx is made
// against, so one evaluation never straddles a birthday.
func WithAsOf(ctx context.Context, asOf time.Time) context.Context {
	return context.WithValue(ctx, asOfKey{}, asOf)
}

// AsOf returns the instant pinned by WithAsOf.
func AsOf(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(asOfKey{}).(time.Time)
	return t, ok
}

// Rule judges one criterion of a single kind.
type Rule func(s Subject, c models.EligibilityCriterion) models.CriterionVerdict

type Evaluator struct {
	rules  map[models.CriterionKind]Rule
	logger logger.Logger
	now    func() time.Time
}

func NewEvaluator(log logger.Logger) *Evaluator {
	return &Evaluator{
		rules:  DefaultRules(),
		logger: log.WithFields(map[string]interface{}{"component": "eligibility"}),
		now:    time.Now,
	}
}

func DefaultRules() map[models.CriterionKind]Rule {
	return map[models.CriterionKind]Rule{
		models.CriterionAge:            AgeRule,
		models.CriterionEducation:      EducationRule,
		models.CriterionWorkExperience: WorkExperienceRule,
		models.CriterionLanguage:       LanguageRule,
		models.CriterionFinancial:      FinancialRule,
		models.CriterionInvestment:     InvestmentRule,
		models.CriterionFamily:         FamilyRule,
		models.CriterionOther:          ManualReviewRule,
	}
}

func (e *Evaluator) Evaluate(profile *models.ApplicantProfile, program *models.Program) (bool, []models.CriterionVerdict) {
	return e.EvaluateAt(profile, program, e.now())
}

// EvaluateAt judges every criterion of program in order. asOf fixes the
// instant the applicant's age is computed against.
func (e *Evaluator) EvaluateAt(profile *models.ApplicantProfile, program *models.Program, asOf time.Time) (bool, []models.CriterionVerdict) {
	subject := Subject{Profile: profile, Program: program}
	if birth, ok := profile.BirthDate(); ok {
		subject.Age = AgeOn(birth, asOf)
		subject.HasAge = true
	}

	eligible := true
	verdicts := make([]models.CriterionVerdict, 0, len(program.EligibilityCriteria))
	for _, c := range program.EligibilityCriteria {
		rule, ok := e.rules[c.Kind]
		var v models.CriterionVerdict
		if ok {
			v = rule(subject, c)
		} else {
			v = unsupported(c, "criterion kind is not recognised")
		}

		if v.Status == models.VerdictUnsupported {
			e.reportUnsupported(program, c, v.Requirement)
		}
		if c.IsRequired && !v.Met {
			eligible = false
		}
		verdicts = append(verdicts, v)
	}

	metrics.ProgramsEvaluated.WithLabelValues(boolLabel(eligible)).Inc()
	return eligible, verdicts
}

func (e *Evaluator) reportUnsupported(program *models.Program, c models.EligibilityCriterion, reason string) {
	metrics.UnsupportedCriteria.WithLabelValues(string(c.Kind)).Inc()
	e.logger.Warn("unsupported eligibility criterion treated as satisfied", map[string]interface{}{
		"programId": program.ID,
		"kind":      string(c.Kind),
		"criterion": c.Name,
		"reason":    reason,
	})
}

// AgeOn returns whole years elapsed between birth and asOf. The birth date is
// read as the calendar date it was written with and asOf is taken in UTC, so
// the result does not depend on the server's time zone.
func AgeOn(birth, asOf time.Time) int {
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.UTC().Date()

	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
