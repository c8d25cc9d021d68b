// internal/workers/advisor/estimate-success-probability/models.go
package estimatesuccessprobability

import "immigration-advisor/internal/models"

type Input struct {
	UserID    string `json:"userId"`
	ProgramID string `json:"programId"`
}

type Output struct {
	ProgramID          string                  `json:"programId"`
	ProgramName        string                  `json:"programName"`
	SuccessProbability int                     `json:"successProbability"`
	PredictionSource   models.PredictionSource `json:"predictionSource"`
	PositiveFactors    []models.Factor         `json:"positiveFactors"`
	NegativeFactors    []models.Factor         `json:"negativeFactors"`
	IsEligible         bool                    `json:"isEligible"`
}
