// internal/workers/advisor/suggest-destinations/models.go
package suggestdestinations

import "immigration-advisor/internal/models"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	Destinations   []models.DestinationSuggestion `json:"destinations"`
	TopDestination string                         `json:"topDestination,omitempty"`
}
