package onboarding

import (
	"encoding/json"
	"time"
)

// Record is the onboarding row owned by the upstream edge function.
// This layer never mutates it directly; it is a value decoded off the
// wire.
type Record struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	OnboardingType string     `json:"onboarding_type"`
	CurrentStep    int        `json:"current_step"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps []string   `json:"completed_steps"`
	SkippedSteps   []string   `json:"skipped_steps"`
	IsCompleted    bool       `json:"is_completed"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Valid onboarding types.
const (
	TypeBusiness = "business"
	TypeUser     = "user"
)

// Step statuses reported by the upstream per-step sub-records.
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
)

// StepState is the per-step sub-record returned inside a status
// response.
type StepState struct {
	StepID      string     `json:"step_id"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Attempts    int        `json:"attempts"`
	ErrorLog    string     `json:"error_log,omitempty"`
}

// StatusResponse is the decoded /status payload.
type StatusResponse struct {
	NeedsOnboarding bool        `json:"needs_onboarding"`
	Onboarding      *Record     `json:"onboarding"`
	Steps           []StepState `json:"steps,omitempty"`
	Progress        int         `json:"progress"`
	NextStep        string      `json:"next_step,omitempty"`
}

// InitializeResult is the outcome of an initialize call. Created is
// derived from the upstream status code: 201 created a record, 200
// resumed an existing one.
type InitializeResult struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	IsCompleted bool   `json:"is_completed"`
	Created     bool   `json:"-"`
}

// StepResult is the outcome of a complete-step or skip-step call.
type StepResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	CurrentStep    int      `json:"current_step"`
	CompletedSteps []string `json:"completed_steps,omitempty"`
	SkippedSteps   []string `json:"skipped_steps,omitempty"`
}

// OperationResult is the outcome of update-progress and complete.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProgressUpdate is a direct progress mutation, bypassing the
// step-by-step flow. Used to resume partially completed sessions.
type ProgressUpdate struct {
	CurrentStep *int           `json:"current_step,omitempty"`
	StepData    map[string]any `json:"step_data,omitempty"`
}

// statusShape mirrors StatusResponse with enough looseness to check
// the wire shape before trusting it: needs_onboarding must be present
// and boolean, steps (when present) must be an array.
type statusShape struct {
	NeedsOnboarding *bool           `json:"needs_onboarding"`
	Steps           json.RawMessage `json:"steps"`
}

func validateStatusShape(body []byte) error {
	var shape statusShape
	if err := json.Unmarshal(body, &shape); err != nil {
		return Errorf(KindValidation, "status response is not valid JSON: %v", err)
	}
	if shape.NeedsOnboarding == nil {
		return Errorf(KindValidation, "status response missing needs_onboarding")
	}
	if len(shape.Steps) > 0 {
		if c := firstNonSpace(shape.Steps); c != '[' && string(shape.Steps) != "null" {
			return Errorf(KindValidation, "status response steps is not an array")
		}
	}
	return nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
