package gaps

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"immigration-advisor/internal/engine/eligibility"
	"immigration-advisor/internal/models"
)

const (
	languageTimeToClose  = "6 months"
	financialTimeToClose = "12 months"
	defaultTimeToClose   = "3 months"
	defaultMonths        = 3
)

var gapNames = map[models.CriterionKind]string{
	models.CriterionAge:            "Age",
	models.CriterionEducation:      "Education",
	models.CriterionWorkExperience: "Work Experience",
	models.CriterionLanguage:       "Language Proficiency",
	models.CriterionFinancial:      "Financial Requirements",
	models.CriterionInvestment:     "Investment Capital",
	models.CriterionFamily:         "Family Ties",
}

// Analyze maps each unmet required verdict to exactly one gap, in verdict
// order.
func Analyze(verdicts []models.CriterionVerdict) []models.Gap {
	gaps := make([]models.Gap, 0)
	for _, v := range verdicts {
		if v.Met || !v.Criterion.IsRequired {
			continue
		}
		gaps = append(gaps, gapFor(v))
	}
	return gaps
}

func gapFor(v models.CriterionVerdict) models.Gap {
	c := v.Criterion
	name, ok := gapNames[c.Kind]
	if !ok {
		name = strings.TrimSpace(c.Name)
		if name == "" {
			name = string(c.Kind)
		}
	}

	gap := models.Gap{
		Category:      c.Kind,
		Name:          name,
		CurrentValue:  v.ObservedValue,
		RequiredValue: v.Requirement,
		TimeToClose:   defaultTimeToClose,
	}

	switch c.Kind {
	case models.CriterionWorkExperience:
		describeExperience(&gap, v)
	case models.CriterionLanguage:
		gap.TimeToClose = languageTimeToClose
		gap.Description = fmt.Sprintf("The program requires a %s.", v.Requirement)
		gap.Recommendation = "Book a recognised language test and record the result in your profile."
	case models.CriterionFinancial:
		gap.TimeToClose = financialTimeToClose
		gap.Description = fmt.Sprintf("The program requires %s; you have %s.", v.Requirement, v.ObservedValue)
		gap.Recommendation = "Build up settlement funds and keep proof of liquid assets."
	case models.CriterionInvestment:
		gap.Description = fmt.Sprintf("The program requires %s; you have %s.", v.Requirement, v.ObservedValue)
		gap.Recommendation = "Arrange documented investment capital or consider a non-investor pathway."
	case models.CriterionAge:
		gap.Description = fmt.Sprintf("The program accepts applicants aged %s; you are %s.",
			strings.TrimSuffix(v.Requirement, " years old"), v.ObservedValue)
		gap.Recommendation = "Age cannot be changed; prioritise programs without this age limit."
	case models.CriterionEducation:
		gap.Description = fmt.Sprintf("The program requires %s education; your highest level is %s.", v.Requirement, v.ObservedValue)
		gap.Recommendation = "Complete further study or have foreign credentials assessed."
	case models.CriterionFamily:
		gap.Description = fmt.Sprintf("The program requires a %s.", v.Requirement)
		gap.Recommendation = "Record eligible relatives in your profile or look at other pathways."
	default:
		gap.Description = fmt.Sprintf("The requirement %q is not met.", name)
		gap.Recommendation = "Review the program requirements with an advisor."
	}

	if v.Status == models.VerdictMissing {
		gap.CurrentValue = "not provided"
		gap.Recommendation = "Complete this section of your profile. " + gap.Recommendation
	}
	return gap
}

func describeExperience(gap *models.Gap, v models.CriterionVerdict) {
	c := v.Criterion
	gap.Recommendation = "Gain additional qualifying work experience in your occupation."

	if v.ObservedNumber != nil {
		gap.CurrentValue = eligibility.FormatNumber(*v.ObservedNumber) + " years"
	}

	// Over the cap: more experience cannot close this gap.
	if hi, ok := c.MaxNumber(); ok && v.ObservedNumber != nil && *v.ObservedNumber > hi {
		gap.Description = fmt.Sprintf("The program accepts at most %s years of work experience.", eligibility.FormatNumber(hi))
		gap.Recommendation = "Prioritise programs without an upper limit on work experience."
		return
	}

	lo, ok := c.MinNumber()
	if !ok {
		gap.Description = "The program's work experience requirement is not met."
		return
	}
	gap.RequiredValue = eligibility.FormatNumber(lo) + "+ years"
	gap.Description = fmt.Sprintf("The program requires at least %s years of work experience.", eligibility.FormatNumber(lo))

	current := 0.0
	if v.ObservedNumber != nil {
		current = *v.ObservedNumber
	}
	if shortfall := lo - current; shortfall > 0 {
		gap.TimeToClose = eligibility.FormatNumber(shortfall) + " years"
	}
}

// EstimateTimeline orders gaps by time-to-close and reports the shortest
// and longest as the closure window.
func EstimateTimeline(gaps []models.Gap) models.Timeline {
	timeline := models.Timeline{Milestones: []models.Milestone{}}
	if len(gaps) == 0 {
		return timeline
	}

	type entry struct {
		gap    models.Gap
		months int
	}
	entries := make([]entry, len(gaps))
	for i, g := range gaps {
		entries[i] = entry{gap: g, months: ParseMonths(g.TimeToClose)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].months < entries[j].months
	})

	for _, e := range entries {
		timeline.Milestones = append(timeline.Milestones, models.Milestone{
			Title:    e.gap.Name + " Target",
			Category: e.gap.Category,
			Month:    e.months,
		})
	}
	timeline.MinMonths = entries[0].months
	timeline.MaxMonths = entries[len(entries)-1].months
	return timeline
}

// ParseMonths converts "<n> months" or "<n> years" to whole months, rounding
// up. Unparseable values count as the default three months.
func ParseMonths(timeToClose string) int {
	fields := strings.Fields(strings.ToLower(timeToClose))
	if len(fields) != 2 {
		return defaultMonths
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || n < 0 {
		return defaultMonths
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "year":
		return int(math.Ceil(n * 12))
	case "month":
		return int(math.Ceil(n))
	default:
		return defaultMonths
	}
}
