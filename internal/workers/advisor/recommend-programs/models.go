// internal/workers/advisor/recommend-programs/models.go
package recommendprograms

import "immigration-advisor/internal/models"

type Input struct {
	UserID    string `json:"userId"`
	Category  string `json:"category,omitempty"`
	CountryID string `json:"countryId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Output struct {
	RecommendedPrograms []models.ScoredProgram `json:"recommendedPrograms"`
	TotalPrograms       int                    `json:"totalPrograms"`
	EligibleCount       int                    `json:"eligibleCount"`
	TopProgramID        string                 `json:"topProgramId,omitempty"`
	HasEligibleProgram  bool                   `json:"hasEligibleProgram"`
}
