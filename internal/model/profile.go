package model

import "strings"

// HealthProfile is an immutable snapshot of the caller's health data for one
// analysis. The pipeline only ever reads these three sets.
type HealthProfile struct {
	Allergies          []string `json:"allergies"`
	Conditions         []string `json:"conditions"`
	DietaryPreferences []string `json:"dietary_preferences"`
}

// IsEmpty reports whether the profile carries no constraints at all.
func (p HealthProfile) IsEmpty() bool {
	return len(p.Allergies) == 0 && len(p.Conditions) == 0 && len(p.DietaryPreferences) == 0
}

// PromptText renders the profile as the context block injected into oracle
// prompts. Returns "" for an empty profile.
func (p HealthProfile) PromptText() string {
	if p.IsEmpty() {
		return ""
	}
	join := func(items []string) string {
		if len(items) == 0 {
			return "None"
		}
		return strings.Join(items, ", ")
	}
	var b strings.Builder
	b.WriteString("User health profile:\n")
	b.WriteString("Allergies: " + join(p.Allergies) + "\n")
	b.WriteString("Health conditions: " + join(p.Conditions) + "\n")
	b.WriteString("Dietary preferences: " + join(p.DietaryPreferences) + "\n\n")
	return b.String()
}
