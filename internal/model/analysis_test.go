package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxRisk_Ordering(t *testing.T) {
	assert.Equal(t, RiskHigh, MaxRisk(RiskLow, RiskHigh))
	assert.Equal(t, RiskHigh, MaxRisk(RiskHigh, RiskMedium))
	assert.Equal(t, RiskMedium, MaxRisk(RiskLow, RiskMedium))
	assert.Equal(t, RiskLow, MaxRisk(RiskLow, RiskLow))
}

func TestRiskLabel_AtLeast(t *testing.T) {
	assert.True(t, RiskHigh.AtLeast(RiskMedium))
	assert.True(t, RiskMedium.AtLeast(RiskMedium))
	assert.False(t, RiskLow.AtLeast(RiskMedium))
}

func TestParseRiskLabel(t *testing.T) {
	l, ok := ParseRiskLabel("High")
	assert.True(t, ok)
	assert.Equal(t, RiskHigh, l)

	_, ok = ParseRiskLabel("severe")
	assert.False(t, ok)
	_, ok = ParseRiskLabel("")
	assert.False(t, ok)
}

func TestOverallRisk(t *testing.T) {
	risks := map[string]RiskLabel{
		"su":    RiskLow,
		"şeker": RiskHigh,
		"tuz":   RiskMedium,
	}
	assert.Equal(t, RiskHigh, OverallRisk(risks))

	assert.Equal(t, RiskLow, OverallRisk(nil))
	assert.Equal(t, RiskLow, OverallRisk(map[string]RiskLabel{}))
}

func TestParseBasis(t *testing.T) {
	assert.Equal(t, Basis100G, ParseBasis("100g"))
	assert.Equal(t, Basis100ML, ParseBasis("100ml"))
	assert.Equal(t, BasisPortion, ParseBasis("portion"))
	assert.Equal(t, BasisUnknown, ParseBasis("per serving"))
	assert.Equal(t, BasisUnknown, ParseBasis(""))
}

func TestNutritionFact_Value(t *testing.T) {
	sugar := 7.3
	n := NutritionFact{Values: map[NutrientKey]*float64{
		SugarG:    &sugar,
		FatTotalG: nil,
	}}

	v, ok := n.Value(SugarG)
	assert.True(t, ok)
	assert.Equal(t, 7.3, v)

	_, ok = n.Value(FatTotalG)
	assert.False(t, ok)
	_, ok = n.Value(ProteinG)
	assert.False(t, ok)
}

func TestHealthProfile_PromptText(t *testing.T) {
	p := HealthProfile{
		Allergies:  []string{"süt", "fındık"},
		Conditions: []string{"diyabet"},
	}
	text := p.PromptText()
	assert.Contains(t, text, "Allergies: süt, fındık")
	assert.Contains(t, text, "Health conditions: diyabet")
	assert.Contains(t, text, "Dietary preferences: None")

	assert.Empty(t, HealthProfile{}.PromptText())
}
