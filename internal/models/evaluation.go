// internal/models/evaluation.go
package models

type VerdictStatus string

const (
	VerdictMet         VerdictStatus = "met"
	VerdictUnmet       VerdictStatus = "unmet"
	VerdictMissing     VerdictStatus = "missing"
	VerdictUnsupported VerdictStatus = "unsupported"
	VerdictManual      VerdictStatus = "manual"
)

// CriterionVerdict is produced once per criterion and never modified.
// ObservedNumber and RequiredNumber carry the numeric sides of a threshold
// comparison when there was one.
type CriterionVerdict struct {
	Criterion      EligibilityCriterion `json:"criterion"`
	Met            bool                 `json:"met"`
	Status         VerdictStatus        `json:"status"`
	ObservedValue  string               `json:"observedValue,omitempty"`
	Requirement    string               `json:"requirement"`
	ObservedNumber *float64             `json:"-"`
	RequiredNumber *float64             `json:"-"`
}

type Gap struct {
	Category       CriterionKind `json:"category"`
	Name           string        `json:"name"`
	CurrentValue   string        `json:"currentValue"`
	RequiredValue  string        `json:"requiredValue"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
	TimeToClose    string        `json:"timeToClose"`
}

type Milestone struct {
	Title    string        `json:"title"`
	Category CriterionKind `json:"category"`
	Month    int           `json:"month"`
}

type Timeline struct {
	MinMonths  int         `json:"minMonths"`
	MaxMonths  int         `json:"maxMonths"`
	Milestones []Milestone `json:"milestones"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Factor struct {
	Factor string   `json:"factor"`
	Impact Severity `json:"impact"`
}

type PredictionSource string

const (
	SourceModel     PredictionSource = "model"
	SourceHeuristic PredictionSource = "heuristic"
	SourceNeutral   PredictionSource = "neutral"
)

// SuccessEstimate is a success probability on the 0..100 scale.
type SuccessEstimate struct {
	Probability     int              `json:"probability"`
	PositiveFactors []Factor         `json:"positiveFactors"`
	NegativeFactors []Factor         `json:"negativeFactors"`
	Notes           string           `json:"notes,omitempty"`
	Source          PredictionSource `json:"source"`
}

// MatchEstimate is a match score on the 0..1 scale.
type MatchEstimate struct {
	Score           float64          `json:"score"`
	PositiveFactors []Factor         `json:"positiveFactors"`
	NegativeFactors []Factor         `json:"negativeFactors"`
	Source          PredictionSource `json:"source"`
}

type Explanation struct {
	PositiveFactors []Factor `json:"positiveFactors"`
	NegativeFactors []Factor `json:"negativeFactors"`
	Summary         string   `json:"summary"`
}

type ScoredProgram struct {
	ProgramID          string             `json:"programId"`
	ProgramName        string             `json:"programName"`
	CountryID          string             `json:"countryId"`
	CountryName        string             `json:"countryName,omitempty"`
	Category           string             `json:"category"`
	IsEligible         bool               `json:"isEligible"`
	MatchScore         float64            `json:"matchScore"`
	SuccessProbability float64            `json:"successProbability"`
	PreferenceScore    float64            `json:"preferenceScore"`
	OverallScore       float64            `json:"overallScore"`
	Explanation        Explanation        `json:"explanation"`
	Gaps               []Gap              `json:"gaps"`
	Verdicts           []CriterionVerdict `json:"verdicts,omitempty"`
	MatchSource        PredictionSource   `json:"matchSource"`
	SuccessSource      PredictionSource   `json:"successSource"`
}

// ScenarioChange is a partial profile patch. Keys are field paths, either
// nested objects or dotted ("financialInfo.liquidAssets").
type ScenarioChange map[string]interface{}

type ScenarioResult struct {
	AppliedChange  ScenarioChange  `json:"appliedChange"`
	RankedPrograms []ScoredProgram `json:"rankedPrograms,omitempty"`
	TotalPrograms  int             `json:"totalPrograms,omitempty"`
	Program        *ScoredProgram  `json:"program,omitempty"`
	Gaps           []Gap           `json:"gaps,omitempty"`
	Timeline       *Timeline       `json:"timeline,omitempty"`
}

type ProbabilityResult struct {
	ProgramID   string          `json:"programId"`
	ProgramName string          `json:"programName"`
	Estimate    SuccessEstimate `json:"estimate"`
	IsEligible  bool            `json:"isEligible"`
}

type GapReport struct {
	ProgramID   string   `json:"programId"`
	ProgramName string   `json:"programName"`
	IsEligible  bool     `json:"isEligible"`
	Gaps        []Gap    `json:"gaps"`
	Timeline    Timeline `json:"timeline"`
}

type DestinationSuggestion struct {
	CountryID        string  `json:"countryId"`
	CountryName      string  `json:"countryName,omitempty"`
	BestScore        float64 `json:"bestScore"`
	TopProgramID     string  `json:"topProgramId"`
	TopProgramName   string  `json:"topProgramName"`
	EligiblePrograms int     `json:"eligiblePrograms"`
	TotalPrograms    int     `json:"totalPrograms"`
	Preferred        bool    `json:"preferred"`
}

// ProgramFilter narrows the candidate set fetched from the program source.
type ProgramFilter struct {
	Category  string `json:"category,omitempty"`
	CountryID string `json:"countryId,omitempty"`
}
