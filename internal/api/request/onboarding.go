package request

import (
	"fmt"

	"github.com/venla/onboard-gateway/internal/onboarding"
)

type CompleteStep struct {
	StepID string         `json:"stepId" validate:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

type SkipStep struct {
	StepID string `json:"stepId" validate:"required"`
}

type UpdateProgress struct {
	CurrentStep *int           `json:"current_step" validate:"omitempty,step_range"`
	StepData    map[string]any `json:"step_data,omitempty"`
}

// ErrRequiredStepSkip is the detail code returned when a caller tries
// to skip a step the flow cannot proceed without.
const ErrRequiredStepSkip = "REQUIRED_STEP_CANNOT_SKIP"

// ValidateStepID applies the two-stage step rule: the ID must be
// present, then must name a catalog step. Returned details are safe
// for the 400 payload.
func ValidateStepID(stepID string) []string {
	if stepID == "" {
		return []string{"stepId is required"}
	}
	if !onboarding.IsValidStepID(stepID) {
		return []string{fmt.Sprintf("unknown step id: %q", stepID)}
	}
	return nil
}

// ValidateSkippableStep extends ValidateStepID with the skip-only
// rule: required steps can never be skipped.
func ValidateSkippableStep(stepID string) []string {
	if details := ValidateStepID(stepID); details != nil {
		return details
	}
	if onboarding.IsRequiredStep(stepID) {
		return []string{ErrRequiredStepSkip}
	}
	return nil
}
