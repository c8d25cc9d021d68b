// pkg/registry/schema.go
package registry

import (
	"encoding/json"
	"time"
)

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Workflows            []string               `json:"workflows"`
	Tags                 []string               `json:"tags"`
}

// Find returns the activity registered for a Zeebe task type.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TimeoutDuration parses Timeout ("30s", "2m"). Empty or invalid values
// yield zero so callers fall back to their own default.
func (a *Activity) TimeoutDuration() time.Duration {
	if a.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// InputSchemaJSON renders the input schema for a JSON schema compiler. It
// returns "" when the activity declares none.
func (a *Activity) InputSchemaJSON() (string, error) {
	if len(a.InputSchema) == 0 {
		return "", nil
	}
	data, err := json.Marshal(a.InputSchema)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
