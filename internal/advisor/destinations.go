package advisor

import (
	"sort"

	"immigration-advisor/internal/models"
)

// SuggestDestinations groups ranked programs by country. Each country is
// scored by its best program; countries keep ranking order on ties and only
// the first topN are returned.
func SuggestDestinations(profile *models.ApplicantProfile, ranked []models.ScoredProgram, topN int) []models.DestinationSuggestion {
	index := make(map[string]int)
	suggestions := make([]models.DestinationSuggestion, 0)

	for _, sp := range ranked {
		if sp.CountryID == "" {
			continue
		}
		i, ok := index[sp.CountryID]
		if !ok {
			i = len(suggestions)
			index[sp.CountryID] = i
			suggestions = append(suggestions, models.DestinationSuggestion{
				CountryID:      sp.CountryID,
				CountryName:    sp.CountryName,
				BestScore:      sp.OverallScore,
				TopProgramID:   sp.ProgramID,
				TopProgramName: sp.ProgramName,
				Preferred:      profile.PrefersCountry(sp.CountryID),
			})
		}

		d := &suggestions[i]
		d.TotalPrograms++
		if sp.IsEligible {
			d.EligiblePrograms++
		}
		if sp.OverallScore > d.BestScore {
			d.BestScore = sp.OverallScore
			d.TopProgramID = sp.ProgramID
			d.TopProgramName = sp.ProgramName
		}
		if d.CountryName == "" {
			d.CountryName = sp.CountryName
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].BestScore > suggestions[j].BestScore
	})
	if topN > 0 && len(suggestions) > topN {
		suggestions = suggestions[:topN]
	}
	return suggestions
}
