// internal/workers/advisor/analyze-program-gaps/models.go
package analyzeprogramgaps

import "immigration-advisor/internal/models"

type Input struct {
	UserID    string `json:"userId"`
	ProgramID string `json:"programId"`
}

type Output struct {
	ProgramID   string          `json:"programId"`
	ProgramName string          `json:"programName"`
	IsEligible  bool            `json:"isEligible"`
	Gaps        []models.Gap    `json:"gaps"`
	GapCount    int             `json:"gapCount"`
	Timeline    models.Timeline `json:"timeline"`
}
