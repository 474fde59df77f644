package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelsense/labelsense/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testResult() *model.AnalysisResult {
	sugar := 49.8
	carb := 58.1
	return &model.AnalysisResult{
		Ingredients: []string{"şeker", "süt tozu", "su"},
		Nutrition: model.NutritionFact{
			Basis: model.Basis100G,
			Values: map[model.NutrientKey]*float64{
				model.SugarG: &sugar,
				model.CarbG:  &carb,
			},
		},
		Risks: map[string]model.RiskLabel{
			"şeker":    model.RiskHigh,
			"süt tozu": model.RiskHigh,
			"su":       model.RiskLow,
		},
		SummaryExplanation: "Yüksek şeker içeriği.",
		SummaryRisk:        model.RiskHigh,
	}
}

func TestSQLite_SaveAndGetScan(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	saved, err := st.SaveAnalysis(ctx, model.Scan{
		UserID:      "user-1",
		ProductName: "Çikolata",
		RawText:     "İçindekiler: şeker, süt tozu, su",
	}, testResult())
	require.NoError(t, err)
	require.NotEmpty(t, saved.Scan.ID)
	assert.Equal(t, model.RiskHigh, saved.Scan.SummaryRisk)

	got, err := st.GetScan(ctx, saved.Scan.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Scan.UserID)
	assert.Equal(t, "Çikolata", got.Scan.ProductName)
	assert.Equal(t, []string{"şeker", "süt tozu", "su"}, got.Scan.Ingredients)
	require.Len(t, got.Ingredients, 3)
	assert.Equal(t, model.RiskHigh, got.Ingredients[0].RiskLevel)
	require.Len(t, got.Nutrients, 2)
	assert.Equal(t, "carbohydrate_g", got.Nutrients[0].Label)
	assert.Equal(t, 58.1, got.Nutrients[0].Value)
}

func TestSQLite_GetScan_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetScan(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListScans_FiltersByUser(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveAnalysis(ctx, model.Scan{UserID: "user-1", RawText: "a"}, testResult())
	require.NoError(t, err)
	_, err = st.SaveAnalysis(ctx, model.Scan{UserID: "user-2", RawText: "b"}, testResult())
	require.NoError(t, err)

	scans, err := st.ListScans(ctx, ScanFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "user-1", scans[0].UserID)
}

func TestSQLite_DeleteScan_CascadesRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	saved, err := st.SaveAnalysis(ctx, model.Scan{UserID: "user-1", RawText: "a"}, testResult())
	require.NoError(t, err)

	require.NoError(t, st.DeleteScan(ctx, saved.Scan.ID))

	_, err = st.GetScan(ctx, saved.Scan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteScan(ctx, saved.Scan.ID), ErrNotFound)
}

func TestSQLite_HealthProfileRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	profile := model.HealthProfile{
		Allergies:          []string{"süt", "fındık"},
		Conditions:         []string{"diyabet"},
		DietaryPreferences: []string{"vegan"},
	}
	require.NoError(t, st.UpsertHealthProfile(ctx, "user-1", profile))

	got, err := st.GetHealthProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, profile, *got)

	// Upsert replaces, not merges.
	require.NoError(t, st.UpsertHealthProfile(ctx, "user-1", model.HealthProfile{Allergies: []string{"gluten"}}))
	got, err = st.GetHealthProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gluten"}, got.Allergies)
	assert.Empty(t, got.Conditions)
}

func TestSQLite_GetHealthProfile_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetHealthProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
