package model

import "time"

// Scan is a persisted label analysis, keyed to the user who requested it.
type Scan struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	ProductName        string    `json:"product_name"`
	RawText            string    `json:"raw_text"`
	Ingredients        []string  `json:"ingredients"`
	SummaryExplanation string    `json:"summary_explanation,omitempty"`
	SummaryRisk        RiskLabel `json:"summary_risk,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ScanIngredient is one persisted ingredient row of a scan.
type ScanIngredient struct {
	Name      string    `json:"name"`
	RiskLevel RiskLabel `json:"risk_level"`
}

// ScanNutrient is one persisted nutrient reading of a scan.
type ScanNutrient struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ScanDetail is a scan joined with its ingredient and nutrient rows.
type ScanDetail struct {
	Scan        Scan             `json:"scan"`
	Ingredients []ScanIngredient `json:"ingredients"`
	Nutrients   []ScanNutrient   `json:"nutrients"`
}
