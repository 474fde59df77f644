package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelsense/labelsense/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	sugar := 12.0
	result := &model.AnalysisResult{
		Ingredients: []string{"şeker", "su"},
		Nutrition: model.NutritionFact{
			Values: map[model.NutrientKey]*float64{model.SugarG: &sugar},
		},
		Risks: map[string]model.RiskLabel{
			"şeker": model.RiskHigh,
			"su":    model.RiskLow,
		},
		SummaryExplanation: "yüksek şeker",
		SummaryRisk:        model.RiskHigh,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scans`).
		WithArgs(pgxmock.AnyArg(), "user-1", "Gazoz", "raw", "yüksek şeker", "High", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO scan_ingredients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 0, "şeker", "High").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO scan_ingredients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 1, "su", "Low").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO scan_nutrients`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 0, "sugar_g", 12.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	detail, err := s.SaveAnalysis(context.Background(), model.Scan{
		UserID:      "user-1",
		ProductName: "Gazoz",
		RawText:     "raw",
	}, result)

	require.NoError(t, err)
	assert.NotEmpty(t, detail.Scan.ID)
	assert.Len(t, detail.Ingredients, 2)
	assert.Len(t, detail.Nutrients, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnalysis_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scans`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	_, err := s.SaveAnalysis(context.Background(), model.Scan{UserID: "u", RawText: "r"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert scan")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetScan_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`^get_scan$`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetScan(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetScan(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`^get_scan$`).
		WithArgs("scan-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "product_name", "raw_text", "summary_explanation", "summary_risk", "created_at"}).
			AddRow("scan-1", "user-1", "Gazoz", "raw", "açıklama", "High", now))
	mock.ExpectQuery(`SELECT name, risk_level FROM scan_ingredients`).
		WithArgs("scan-1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "risk_level"}).
			AddRow("şeker", "High").
			AddRow("su", "Low"))
	mock.ExpectQuery(`SELECT label, value FROM scan_nutrients`).
		WithArgs("scan-1").
		WillReturnRows(pgxmock.NewRows([]string{"label", "value"}).
			AddRow("sugar_g", 12.0))

	detail, err := s.GetScan(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"şeker", "su"}, detail.Scan.Ingredients)
	assert.Equal(t, model.RiskHigh, detail.Scan.SummaryRisk)
	require.Len(t, detail.Nutrients, 1)
	assert.Equal(t, 12.0, detail.Nutrients[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteScan_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM scans WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteScan(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHealthProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`^get_profile$`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"allergies", "conditions", "dietary_preferences"}).
			AddRow([]byte(`["süt"]`), []byte(`["diyabet"]`), []byte(`[]`)))

	profile, err := s.GetHealthProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"süt"}, profile.Allergies)
	assert.Equal(t, []string{"diyabet"}, profile.Conditions)
	assert.Empty(t, profile.DietaryPreferences)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHealthProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`^get_profile$`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetHealthProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertHealthProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO health_profiles`).
		WithArgs("user-1", []byte(`["süt"]`), []byte(`[]`), []byte(`["vegan"]`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertHealthProfile(context.Background(), "user-1", model.HealthProfile{
		Allergies:          []string{"süt"},
		DietaryPreferences: []string{"vegan"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreparedStatementsCoverReadPaths(t *testing.T) {
	// The read methods execute these by name; every name must have SQL
	// registered for AfterConnect to prepare.
	for _, name := range []string{stmtGetScan, stmtGetProfile, stmtListByUser} {
		assert.Contains(t, preparedStatements, name)
		assert.NotEmpty(t, preparedStatements[name])
	}
}

func TestPostgresStore_ListScans(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`^list_by_user$`).
		WithArgs("user-1", 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "product_name", "raw_text", "summary_explanation", "summary_risk", "created_at"}).
			AddRow("scan-1", "user-1", "Gazoz", "raw", "", "Low", now))

	scans, err := s.ListScans(context.Background(), ScanFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "scan-1", scans[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
