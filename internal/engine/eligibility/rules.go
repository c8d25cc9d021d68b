package eligibility

import (
	"fmt"
	"strconv"
	"strings"

	"immigration-advisor/internal/models"
)

// judged builds a verdict for a criterion whose profile value was present.
func judged(c models.EligibilityCriterion, met bool, observed, requirement string) models.CriterionVerdict {
	status := models.VerdictUnmet
	if met {
		status = models.VerdictMet
	}
	return models.CriterionVerdict{
		Criterion:     c,
		Met:           met,
		Status:        status,
		ObservedValue: observed,
		Requirement:   requirement,
	}
}

// absent applies the missing-data policy: unmet only when required.
func absent(c models.EligibilityCriterion, requirement string) models.CriterionVerdict {
	return models.CriterionVerdict{
		Criterion:     c,
		Met:           !c.IsRequired,
		Status:        models.VerdictMissing,
		ObservedValue: "not provided",
		Requirement:   requirement,
	}
}

func absentWithRequired(c models.EligibilityCriterion, requirement string, required *float64) models.CriterionVerdict {
	v := absent(c, requirement)
	v.RequiredNumber = required
	return v
}

func unsupported(c models.EligibilityCriterion, reason string) models.CriterionVerdict {
	return models.CriterionVerdict{
		Criterion:   c,
		Met:         true,
		Status:      models.VerdictUnsupported,
		Requirement: reason,
	}
}

func withNumbers(v models.CriterionVerdict, observed float64, required *float64) models.CriterionVerdict {
	v.ObservedNumber = &observed
	v.RequiredNumber = required
	return v
}

func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// inRange reports whether v satisfies the inclusive bounds present on c.
// ok is false when c carries neither bound.
func inRange(c models.EligibilityCriterion, v float64) (met bool, ok bool) {
	lo, hasLo := c.MinNumber()
	hi, hasHi := c.MaxNumber()
	if !hasLo && !hasHi {
		return false, false
	}
	met = true
	if hasLo && v < lo {
		met = false
	}
	if hasHi && v > hi {
		met = false
	}
	return met, true
}

func rangeRequirement(c models.EligibilityCriterion, unit string) string {
	lo, hasLo := c.MinNumber()
	hi, hasHi := c.MaxNumber()
	switch {
	case hasLo && hasHi:
		return fmt.Sprintf("%s-%s %s", FormatNumber(lo), FormatNumber(hi), unit)
	case hasLo:
		return fmt.Sprintf("%s+ %s", FormatNumber(lo), unit)
	case hasHi:
		return fmt.Sprintf("at most %s %s", FormatNumber(hi), unit)
	default:
		return ""
	}
}

func requiredNumber(c models.EligibilityCriterion) *float64 {
	if lo, ok := c.MinNumber(); ok {
		return &lo
	}
	if hi, ok := c.MaxNumber(); ok {
		return &hi
	}
	return nil
}

func AgeRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	requirement := rangeRequirement(c, "years old")
	if requirement == "" {
		return unsupported(c, "age criterion has no bounds")
	}
	if !s.HasAge {
		return absentWithRequired(c, requirement, requiredNumber(c))
	}
	met, _ := inRange(c, float64(s.Age))
	v := judged(c, met, fmt.Sprintf("%d years old", s.Age), requirement)
	return withNumbers(v, float64(s.Age), requiredNumber(c))
}

func WorkExperienceRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	requirement := rangeRequirement(c, "years")
	if requirement == "" {
		return unsupported(c, "work experience criterion has no bounds")
	}
	years, ok := s.Profile.ExperienceYears()
	if !ok {
		return absentWithRequired(c, requirement, requiredNumber(c))
	}
	met, _ := inRange(c, years)
	v := judged(c, met, FormatNumber(years)+" years", requirement)
	return withNumbers(v, years, requiredNumber(c))
}

var educationRanks = map[string]int{
	"none":        0,
	"primary":     0,
	"secondary":   1,
	"high_school": 1,
	"highschool":  1,
	"certificate": 2,
	"diploma":     2,
	"associate":   2,
	"vocational":  2,
	"bachelor":    3,
	"master":      4,
	"doctorate":   5,
	"phd":         5,
}

var educationNames = []string{"none", "secondary", "diploma", "bachelor", "master", "doctorate"}

// EducationRank maps a free-form education level onto an ordinal scale.
func EducationRank(level string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(level))
	key = strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(key)
	key = strings.TrimSuffix(key, "_degree")
	if rank, ok := educationRanks[key]; ok {
		return rank, true
	}
	if rank, ok := educationRanks[strings.TrimSuffix(key, "s")]; ok {
		return rank, true
	}
	return 0, false
}

func EducationRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	required, ok := requiredEducationRank(c)
	if !ok {
		return unsupported(c, "education criterion has no recognisable level")
	}
	requirement := educationNames[required] + " or higher"

	level, ok := s.Profile.EducationLevel()
	if !ok {
		return absent(c, requirement)
	}
	rank, ok := EducationRank(level)
	if !ok {
		return absent(c, requirement)
	}
	v := judged(c, rank >= required, level, requirement)
	return withNumbers(v, float64(rank), floatPtr(float64(required)))
}

func requiredEducationRank(c models.EligibilityCriterion) (int, bool) {
	if s, ok := c.MinString(); ok {
		if rank, ok := EducationRank(s); ok {
			return rank, true
		}
	}
	if n, ok := c.MinNumber(); ok && n >= 0 && int(n) < len(educationNames) {
		return int(n), true
	}
	if s, ok := c.MinField("level"); ok {
		return EducationRank(s)
	}
	return 0, false
}

// LanguageRule is satisfied by any proficiency record for the named language
// that carries a formal test result. The test score itself is not compared
// with minValue.
func LanguageRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	language, named := requiredLanguage(c)
	requirement := "formal language test result"
	if named {
		requirement = fmt.Sprintf("formal %s test result", language)
	}

	var records []models.LanguageProficiency
	if s.Profile != nil {
		for _, lp := range s.Profile.LanguageProficiency {
			if matchesLanguage(lp.Language, language, named, c.Name) {
				records = append(records, lp)
			}
		}
	}
	if len(records) == 0 {
		return absent(c, requirement)
	}

	for _, lp := range records {
		if lp.HasTestResult() {
			observed := fmt.Sprintf("%s %s %s", lp.Language, lp.TestType, FormatNumber(*lp.OverallScore))
			return judged(c, true, observed, requirement)
		}
	}
	return judged(c, false, records[0].Language+" without a formal test result", requirement)
}

func requiredLanguage(c models.EligibilityCriterion) (string, bool) {
	if lang, ok := c.MinField("language"); ok {
		return lang, true
	}
	if s, ok := c.MinString(); ok {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return s, true
		}
	}
	return "", false
}

func matchesLanguage(recorded, required string, named bool, criterionName string) bool {
	recorded = strings.TrimSpace(recorded)
	if recorded == "" {
		return false
	}
	if named {
		return strings.EqualFold(recorded, strings.TrimSpace(required))
	}
	for _, word := range strings.FieldsFunc(criterionName, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '(' || r == ')'
	}) {
		if strings.EqualFold(word, recorded) {
			return true
		}
	}
	return false
}

// FinancialRule compares available funds with minValue as-is; amounts in
// different currencies are not converted.
func FinancialRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	return fundsRule(s, c, "available funds")
}

func InvestmentRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	return fundsRule(s, c, "investment capital")
}

func fundsRule(s Subject, c models.EligibilityCriterion, label string) models.CriterionVerdict {
	required, ok := requiredAmount(c)
	if !ok {
		return unsupported(c, label+" criterion has no minimum amount")
	}
	requirement := fmt.Sprintf("%s of at least %s", label, formatAmount(required, c.Unit))

	funds, ok := s.Profile.AvailableFunds()
	if !ok {
		return absentWithRequired(c, requirement, &required)
	}
	v := judged(c, funds >= required, formatAmount(funds, currencyOf(s.Profile)), requirement)
	return withNumbers(v, funds, &required)
}

func requiredAmount(c models.EligibilityCriterion) (float64, bool) {
	if n, ok := c.MinNumber(); ok {
		return n, true
	}
	return c.MinFieldNumber("amount")
}

func currencyOf(p *models.ApplicantProfile) string {
	if p == nil || p.FinancialInfo == nil {
		return ""
	}
	return p.FinancialInfo.Currency
}

func formatAmount(v float64, unit string) string {
	if unit == "" {
		return FormatNumber(v)
	}
	return FormatNumber(v) + " " + unit
}

// FamilyRule looks for a relative in the program's country, optionally of
// the relationship named by minValue.
func FamilyRule(s Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	country := s.Program.CountryID
	if id, ok := c.MinField("countryId"); ok {
		country = id
	}
	relationship, hasRelationship := c.MinField("relationship")
	if !hasRelationship {
		relationship, hasRelationship = c.MinString()
	}

	requirement := "relative living in " + country
	if hasRelationship {
		requirement = fmt.Sprintf("%s living in %s", relationship, country)
	}

	if s.Profile == nil || s.Profile.Family == nil || s.Profile.Family.RelativesAbroad == nil {
		return absent(c, requirement)
	}
	for _, rel := range s.Profile.Family.RelativesAbroad {
		if !strings.EqualFold(rel.CountryID, country) {
			continue
		}
		if hasRelationship && !strings.EqualFold(rel.Relationship, relationship) {
			continue
		}
		return judged(c, true, fmt.Sprintf("%s in %s", nonEmpty(rel.Relationship, "relative"), rel.CountryID), requirement)
	}
	return judged(c, false, fmt.Sprintf("%d relatives abroad, none matching", len(s.Profile.Family.RelativesAbroad)), requirement)
}

// ManualReviewRule handles "other" criteria, which describe requirements
// such as police clearance that only a caseworker can confirm.
func ManualReviewRule(_ Subject, c models.EligibilityCriterion) models.CriterionVerdict {
	return models.CriterionVerdict{
		Criterion:   c,
		Met:         true,
		Status:      models.VerdictManual,
		Requirement: nonEmpty(c.Name, "manual review"),
	}
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func floatPtr(v float64) *float64 { return &v }
