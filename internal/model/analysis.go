package model

// RiskLabel is the per-ingredient risk tier, totally ordered Low < Medium < High.
type RiskLabel string

const (
	RiskLow    RiskLabel = "Low"
	RiskMedium RiskLabel = "Medium"
	RiskHigh   RiskLabel = "High"
)

var riskRank = map[RiskLabel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// Valid reports whether l is one of the three canonical labels.
func (l RiskLabel) Valid() bool {
	_, ok := riskRank[l]
	return ok
}

// AtLeast reports whether l ranks at or above other.
func (l RiskLabel) AtLeast(other RiskLabel) bool {
	return riskRank[l] >= riskRank[other]
}

// MaxRisk returns the higher-ranked of a and b.
func MaxRisk(a, b RiskLabel) RiskLabel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// ParseRiskLabel validates a raw label string from the oracle. Anything
// outside the canonical vocabulary is rejected.
func ParseRiskLabel(s string) (RiskLabel, bool) {
	l := RiskLabel(s)
	return l, l.Valid()
}

// AnalysisResult is the terminal output of one pipeline invocation. Every
// ingredient in Ingredients has an entry in Risks, and SummaryRisk equals
// the maximum label present in Risks.
type AnalysisResult struct {
	Ingredients        []string             `json:"ingredients"`
	Nutrition          NutritionFact        `json:"nutrition"`
	Risks              map[string]RiskLabel `json:"risks"`
	SummaryExplanation string               `json:"summary_explanation"`
	SummaryRisk        RiskLabel            `json:"summary_risk"`
}

// OverallRisk derives the summary label from the per-ingredient map. It is
// the single source of truth for SummaryRisk: oracle-proposed summaries are
// never trusted over it.
func OverallRisk(risks map[string]RiskLabel) RiskLabel {
	out := RiskLow
	for _, l := range risks {
		out = MaxRisk(out, l)
	}
	return out
}
