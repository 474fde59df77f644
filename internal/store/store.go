package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/labelsense/labelsense/internal/model"
)

// ErrNotFound is returned when a scan or profile does not exist.
var ErrNotFound = eris.New("store: not found")

// ScanFilter specifies criteria for listing scans.
type ScanFilter struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for analyses and health profiles.
type Store interface {
	// Scans
	SaveAnalysis(ctx context.Context, scan model.Scan, result *model.AnalysisResult) (*model.ScanDetail, error)
	GetScan(ctx context.Context, scanID string) (*model.ScanDetail, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.Scan, error)
	DeleteScan(ctx context.Context, scanID string) error

	// Health profiles
	GetHealthProfile(ctx context.Context, userID string) (*model.HealthProfile, error)
	UpsertHealthProfile(ctx context.Context, userID string, profile model.HealthProfile) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// nutrientRows flattens the validated nutrition record into persistable
// label/value pairs, macro keys in canonical order, then micros.
func nutrientRows(result *model.AnalysisResult) []model.ScanNutrient {
	if result == nil {
		return nil
	}
	var rows []model.ScanNutrient
	for _, key := range model.MacroKeys {
		if v, ok := result.Nutrition.Value(key); ok {
			rows = append(rows, model.ScanNutrient{Label: string(key), Value: v})
		}
	}
	for name, v := range result.Nutrition.Micros {
		rows = append(rows, model.ScanNutrient{Label: name, Value: v})
	}
	return rows
}

// ingredientRows pairs every ingredient with its final risk label.
func ingredientRows(result *model.AnalysisResult) []model.ScanIngredient {
	if result == nil {
		return nil
	}
	rows := make([]model.ScanIngredient, 0, len(result.Ingredients))
	for _, name := range result.Ingredients {
		rows = append(rows, model.ScanIngredient{Name: name, RiskLevel: result.Risks[name]})
	}
	return rows
}
