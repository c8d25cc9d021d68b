// internal/models/program.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type CriterionKind string

const (
	CriterionAge            CriterionKind = "age"
	CriterionEducation      CriterionKind = "education"
	CriterionWorkExperience CriterionKind = "workExperience"
	CriterionLanguage       CriterionKind = "language"
	CriterionFinancial      CriterionKind = "financial"
	CriterionInvestment     CriterionKind = "investment"
	CriterionFamily         CriterionKind = "family"
	CriterionOther          CriterionKind = "other"
)

type Program struct {
	ID                    string                 `json:"id"`
	Name                  string                 `json:"name"`
	Category              string                 `json:"category"`
	CountryID             string                 `json:"countryId"`
	CountryName           string                 `json:"countryName,omitempty"`
	Description           string                 `json:"description,omitempty"`
	HistoricalSuccessRate *float64               `json:"historicalSuccessRate,omitempty"`
	ProcessingTimeMonths  *float64               `json:"processingTimeMonths,omitempty"`
	EligibilityCriteria   []EligibilityCriterion `json:"eligibilityCriteria"`
	Costs                 []ProgramCost          `json:"costs,omitempty"`
	Steps                 []ApplicationStep      `json:"steps,omitempty"`
}

type ProgramCost struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type ApplicationStep struct {
	Order       int    `json:"order"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EligibilityCriterion bounds are kept raw: depending on Kind they hold a
// number, a numeric string, a plain string or an object.
type EligibilityCriterion struct {
	Kind       CriterionKind   `json:"kind"`
	Name       string          `json:"name"`
	MinValue   json.RawMessage `json:"minValue,omitempty"`
	MaxValue   json.RawMessage `json:"maxValue,omitempty"`
	Unit       string          `json:"unit,omitempty"`
	IsRequired bool            `json:"isRequired"`
}

func (c EligibilityCriterion) MinNumber() (float64, bool) { return boundNumber(c.MinValue) }
func (c EligibilityCriterion) MaxNumber() (float64, bool) { return boundNumber(c.MaxValue) }
func (c EligibilityCriterion) MinString() (string, bool)  { return boundString(c.MinValue) }

// MinField reads a string field from an object-valued minValue.
func (c EligibilityCriterion) MinField(field string) (string, bool) {
	obj, ok := boundObject(c.MinValue)
	if !ok {
		return "", false
	}
	s, ok := obj[field].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// MinFieldNumber reads a numeric field from an object-valued minValue.
func (c EligibilityCriterion) MinFieldNumber(field string) (float64, bool) {
	obj, ok := boundObject(c.MinValue)
	if !ok {
		return 0, false
	}
	switch v := obj[field].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func boundNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func boundString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return s, true
	}
	return "", false
}

func boundObject(raw json.RawMessage) (map[string]interface{}, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// NumberBound is a convenience for building criteria in code and tests.
func NumberBound(v float64) json.RawMessage {
	return json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))
}

func StringBound(v string) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
