// internal/workers/advisor/simulate-scenario/models.go
package simulatescenario

import "immigration-advisor/internal/models"

type Input struct {
	UserID              string                `json:"userId"`
	ProfileChanges      models.ScenarioChange `json:"profileChanges"`
	ProgramIDToEvaluate string                `json:"programIdToEvaluate,omitempty"`
}

type Output struct {
	ScenarioResult *models.ScenarioResult `json:"scenarioResult"`
	// BecomesEligible is set when a single program was evaluated and the
	// change leaves the applicant eligible for it.
	BecomesEligible bool `json:"becomesEligible"`
}
