package onboarding

import "math"

// StepDefinition is a static catalog entry. The catalog is fixed at
// compile time; nothing in this layer persists step definitions.
type StepDefinition struct {
	ID            string `json:"id"`
	Sequence      int    `json:"sequence"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	IsRequired    bool   `json:"is_required"`
	EstimatedTime string `json:"estimated_time"`
}

// Canonical step IDs.
const (
	StepUserProfile     = "user-profile"
	StepBusinessProfile = "business-profile"
	StepDataSetup       = "data-setup"
	StepStorage         = "storage"
	StepTeam            = "team"
	StepTour            = "tour"
)

// catalog is the canonical ordered step list. Ordering is carried by
// the Sequence field, not slice position.
var catalog = []StepDefinition{
	{ID: StepUserProfile, Sequence: 1, Title: "Your profile", Description: "Tell us who you are", IsRequired: true, EstimatedTime: "2 min"},
	{ID: StepBusinessProfile, Sequence: 2, Title: "Business profile", Description: "Set up your company details", IsRequired: true, EstimatedTime: "3 min"},
	{ID: StepDataSetup, Sequence: 3, Title: "Data setup", Description: "Import or create your starting data", EstimatedTime: "5 min"},
	{ID: StepStorage, Sequence: 4, Title: "Storage", Description: "Connect document storage", EstimatedTime: "2 min"},
	{ID: StepTeam, Sequence: 5, Title: "Invite your team", Description: "Add teammates to your workspace", EstimatedTime: "3 min"},
	{ID: StepTour, Sequence: 6, Title: "Product tour", Description: "A quick walkthrough of the app", EstimatedTime: "4 min"},
}

// TotalSteps is the size of the catalog.
const TotalSteps = 6

// Steps returns a copy of the catalog in canonical order.
func Steps() []StepDefinition {
	out := make([]StepDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// StepDefinitionFor returns the definition for a step ID, or nil when
// the ID is not in the catalog.
func StepDefinitionFor(stepID string) *StepDefinition {
	for i := range catalog {
		if catalog[i].ID == stepID {
			def := catalog[i]
			return &def
		}
	}
	return nil
}

// IsValidStepID reports whether stepID is one of the canonical IDs.
func IsValidStepID(stepID string) bool {
	return StepDefinitionFor(stepID) != nil
}

// IsRequiredStep reports whether stepID names a required step.
func IsRequiredStep(stepID string) bool {
	def := StepDefinitionFor(stepID)
	return def != nil && def.IsRequired
}

// NextStepID maps a record's current_step to the step the user should
// do next. current_step counts steps completed so far, so the next
// step is the one at sequence currentStep+1. Returns "" when
// currentStep is outside [1, TotalSteps).
func NextStepID(currentStep int) string {
	if currentStep < 1 || currentStep >= TotalSteps {
		return ""
	}
	for i := range catalog {
		if catalog[i].Sequence == currentStep+1 {
			return catalog[i].ID
		}
	}
	return ""
}

// Progress returns the completion percentage, rounded to the nearest
// integer. A non-positive total yields 0.
func Progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
