package model

// NutrientKey identifies one of the fixed macro nutrition fields extracted
// from a label. The set is closed: micronutrients travel in the open-ended
// Micros map instead.
type NutrientKey string

const (
	EnergyKcal   NutrientKey = "energy_kcal"
	FatTotalG    NutrientKey = "fat_total_g"
	FatSatG      NutrientKey = "fat_saturated_g"
	FatTransG    NutrientKey = "fat_trans_g"
	CarbG        NutrientKey = "carbohydrate_g"
	SugarG       NutrientKey = "sugar_g"
	FiberG       NutrientKey = "fiber_g"
	ProteinG     NutrientKey = "protein_g"
	SaltG        NutrientKey = "salt_g"
)

// MacroKeys lists every NutrientKey in label order. Used when iterating the
// values map deterministically (persistence, prompt construction).
var MacroKeys = []NutrientKey{
	EnergyKcal, FatTotalG, FatSatG, FatTransG,
	CarbG, SugarG, FiberG, ProteinG, SaltG,
}

// Basis is the measurement reference frame of a nutrition table.
type Basis string

const (
	Basis100G    Basis = "100g"
	Basis100ML   Basis = "100ml"
	BasisPortion Basis = "portion"
	BasisUnknown Basis = "unknown"
)

// ParseBasis maps a raw basis string from the oracle to a known Basis,
// defaulting to unknown.
func ParseBasis(s string) Basis {
	switch Basis(s) {
	case Basis100G, Basis100ML, BasisPortion:
		return Basis(s)
	}
	return BasisUnknown
}

// ProvisionalNutrition is the unvalidated nutrition block straight from the
// extraction oracle. Values may be absent (nil) but are already numeric:
// string/number duck-typing is resolved at the oracle response boundary.
type ProvisionalNutrition struct {
	Basis        Basis                    `json:"basis"`
	IsNormalized bool                     `json:"is_normalized_100g"`
	Values       map[NutrientKey]*float64 `json:"values"`
	Micros       map[string]float64       `json:"micros,omitempty"`
}

// ProvisionalExtraction is the full unvalidated record produced by one
// extraction call. It lives only inside a single pipeline invocation.
type ProvisionalExtraction struct {
	Ingredients []string             `json:"ingredients"`
	Nutrition   ProvisionalNutrition `json:"nutrition"`
}

// NutritionFact is the validated nutrition record. Invariants after
// validation: fat_total_g >= fat_saturated_g and carbohydrate_g >= sugar_g
// whenever both sides are present, 0 <= salt_g <= 5, 0 <= energy_kcal <= 900.
type NutritionFact struct {
	Basis        Basis                    `json:"basis"`
	IsNormalized bool                     `json:"is_normalized_100g"`
	Values       map[NutrientKey]*float64 `json:"values"`
	Micros       map[string]float64       `json:"micros,omitempty"`
}

// Value returns the macro value for key, or (0, false) when absent.
func (n NutritionFact) Value(key NutrientKey) (float64, bool) {
	v, ok := n.Values[key]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}
