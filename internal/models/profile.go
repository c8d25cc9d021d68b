// internal/models/profile.go
package models

import (
	"strings"
	"time"
)

// ApplicantProfile is the read-only applicant record returned by the profile
// service. Optional sections are pointers; a nil section means the applicant
// never filled it in.
type ApplicantProfile struct {
	UserID                 string                  `json:"userId"`
	PersonalInfo           *PersonalInfo           `json:"personalInfo,omitempty"`
	Education              *Education              `json:"education,omitempty"`
	WorkExperience         *WorkExperience         `json:"workExperience,omitempty"`
	LanguageProficiency    []LanguageProficiency   `json:"languageProficiency,omitempty"`
	FinancialInfo          *FinancialInfo          `json:"financialInfo,omitempty"`
	Family                 *FamilyInfo             `json:"family,omitempty"`
	ImmigrationPreferences *ImmigrationPreferences `json:"immigrationPreferences,omitempty"`
}

type PersonalInfo struct {
	FirstName          string  `json:"firstName,omitempty"`
	LastName           string  `json:"lastName,omitempty"`
	DateOfBirth        *string `json:"dateOfBirth,omitempty"`
	Nationality        string  `json:"nationality,omitempty"`
	CountryOfResidence string  `json:"countryOfResidence,omitempty"`
}

type Education struct {
	HighestLevel string   `json:"highestLevel,omitempty"`
	FieldOfStudy string   `json:"fieldOfStudy,omitempty"`
	YearsOfStudy *float64 `json:"yearsOfStudy,omitempty"`
}

type WorkExperience struct {
	TotalYears        *float64 `json:"totalYears,omitempty"`
	Occupation        string   `json:"occupation,omitempty"`
	CurrentlyEmployed *bool    `json:"currentlyEmployed,omitempty"`
}

type LanguageProficiency struct {
	Language     string   `json:"language"`
	IsNative     bool     `json:"isNative,omitempty"`
	TestType     string   `json:"testType,omitempty"`
	OverallScore *float64 `json:"overallScore,omitempty"`
	TestDate     *string  `json:"testDate,omitempty"`
}

// HasTestResult reports whether a formal test result is on record.
func (l LanguageProficiency) HasTestResult() bool {
	return strings.TrimSpace(l.TestType) != "" && l.OverallScore != nil
}

type FinancialInfo struct {
	LiquidAssets *float64 `json:"liquidAssets,omitempty"`
	NetWorth     *float64 `json:"netWorth,omitempty"`
	AnnualIncome *float64 `json:"annualIncome,omitempty"`
	Currency     string   `json:"currency,omitempty"`
}

type FamilyInfo struct {
	MaritalStatus   string     `json:"maritalStatus,omitempty"`
	Dependents      *int       `json:"dependents,omitempty"`
	RelativesAbroad []Relative `json:"relativesAbroad,omitempty"`
}

type Relative struct {
	CountryID    string `json:"countryId"`
	Relationship string `json:"relationship,omitempty"`
}

type ImmigrationPreferences struct {
	DestinationCountries []RankedPreference `json:"destinationCountries,omitempty"`
	PathwayTypes         []RankedPreference `json:"pathwayTypes,omitempty"`
}

// RankedPreference is one entry of a ranked preference list. Value is a
// country id for destinations and a program category for pathways.
type RankedPreference struct {
	Value string `json:"value"`
	Rank  int    `json:"rank,omitempty"`
}

var birthDateLayouts = []string{time.RFC3339, "2006-01-02"}

// BirthDate parses PersonalInfo.DateOfBirth. ok is false when the date is
// absent or unparseable.
func (p *ApplicantProfile) BirthDate() (time.Time, bool) {
	if p == nil || p.PersonalInfo == nil || p.PersonalInfo.DateOfBirth == nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(*p.PersonalInfo.DateOfBirth)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AvailableFunds returns liquid assets, falling back to net worth.
func (p *ApplicantProfile) AvailableFunds() (float64, bool) {
	if p == nil || p.FinancialInfo == nil {
		return 0, false
	}
	if p.FinancialInfo.LiquidAssets != nil {
		return *p.FinancialInfo.LiquidAssets, true
	}
	if p.FinancialInfo.NetWorth != nil {
		return *p.FinancialInfo.NetWorth, true
	}
	return 0, false
}

func (p *ApplicantProfile) ExperienceYears() (float64, bool) {
	if p == nil || p.WorkExperience == nil || p.WorkExperience.TotalYears == nil {
		return 0, false
	}
	return *p.WorkExperience.TotalYears, true
}

func (p *ApplicantProfile) EducationLevel() (string, bool) {
	if p == nil || p.Education == nil || strings.TrimSpace(p.Education.HighestLevel) == "" {
		return "", false
	}
	return p.Education.HighestLevel, true
}

// PrefersCountry reports whether countryID appears anywhere in the ranked
// destination list.
func (p *ApplicantProfile) PrefersCountry(countryID string) bool {
	if p == nil || p.ImmigrationPreferences == nil || countryID == "" {
		return false
	}
	return containsPreference(p.ImmigrationPreferences.DestinationCountries, countryID)
}

// PrefersPathway reports whether category appears anywhere in the ranked
// pathway list.
func (p *ApplicantProfile) PrefersPathway(category string) bool {
	if p == nil || p.ImmigrationPreferences == nil || category == "" {
		return false
	}
	return containsPreference(p.ImmigrationPreferences.PathwayTypes, category)
}

func containsPreference(prefs []RankedPreference, value string) bool {
	for _, pref := range prefs {
		if strings.EqualFold(pref.Value, value) {
			return true
		}
	}
	return false
}
