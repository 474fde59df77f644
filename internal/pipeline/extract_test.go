package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labelsense/labelsense/internal/model"
)

const unifiedResponse = `{
  "ingredients": ["şeker", "su", "portakal suyu konsantresi"],
  "nutrition_data": {
    "basis": "100ml",
    "is_normalized_100g": true,
    "values": {"energy_kcal": 48, "sugar_g": 18.3, "carbohydrate_g": 18.3}
  },
  "risks": {"şeker": "High", "su": "Low", "portakal suyu konsantresi": "Medium"},
  "summary_explanation": "Diyabet hastası için yüksek şeker içeriği riskli.",
  "summary_risk": "High"
}`

func TestExtractUnified(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(oracleText("```json\n"+unifiedResponse+"\n```"), nil)

	out, err := ExtractUnified(context.Background(), "İçindekiler: şeker, su",
		model.HealthProfile{Conditions: []string{"diyabet"}}, "tr", oracle, testAICfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"şeker", "su", "portakal suyu konsantresi"}, out.Ingredients)
	assert.Equal(t, model.Basis100ML, out.Nutrition.Basis)
	assert.True(t, out.Nutrition.IsNormalized)

	sugar := out.Nutrition.Values[model.SugarG]
	require.NotNil(t, sugar)
	assert.Equal(t, 18.3, *sugar)

	assert.Equal(t, model.RiskHigh, out.DraftRisks["şeker"])
	assert.Equal(t, model.RiskMedium, out.DraftRisks["portakal suyu konsantresi"])
	assert.Equal(t, model.RiskHigh, out.SummaryRisk)
	assert.NotEmpty(t, out.SummaryExplanation)
}

func TestExtractUnifiedRejectsEmptyIngredients(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(oracleText(`{"ingredients": [], "risks": {}}`), nil)

	_, err := ExtractUnified(context.Background(), "garbled", model.HealthProfile{}, "tr", oracle, testAICfg)

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExtraction))
}

func TestExtractUnifiedWrapsConnectivityErrors(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, eris.New("dial tcp: connection refused"))

	_, err := ExtractUnified(context.Background(), "text", model.HealthProfile{}, "tr", oracle, testAICfg)

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExtraction))
}

func TestExtractUnifiedRejectsNonJSON(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(oracleText("I could not read this label, sorry."), nil)

	_, err := ExtractUnified(context.Background(), "text", model.HealthProfile{}, "tr", oracle, testAICfg)

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExtraction))
}

func TestExtractParse(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(oracleText(`{
			"ingredients_plain_text": "buğday unu, tuz, su",
			"nutrition_data": {"basis": "100g", "values": {"salt_g": "1,8"}}
		}`), nil)

	out, err := ExtractParse(context.Background(), "İçindekiler: buğday unu, tuz, su", oracle, testAICfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"buğday unu", "tuz", "su"}, out.Ingredients)

	salt := out.Nutrition.Values[model.SaltG]
	require.NotNil(t, salt)
	assert.Equal(t, 1.8, *salt)
}

func TestIngredientList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["şeker", "su"]`, []string{"şeker", "su"}},
		{"comma joined string", `"şeker, su , tuz"`, []string{"şeker", "su", "tuz"}},
		{"blank entries dropped", `["şeker", "", "  "]`, []string{"şeker"}},
		{"empty string", `""`, nil},
		{"unusable shape", `42`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingredientList(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeNutritionAcceptedShapes(t *testing.T) {
	t.Run("object shape", func(t *testing.T) {
		n := normalizeNutrition(json.RawMessage(`{
			"basis": "100g",
			"is_normalized_100g": true,
			"values": {"sugar_g": 12, "protein_g": "4,2"},
			"micros": {"vitamin_c_mg": 30}
		}`))
		assert.Equal(t, model.Basis100G, n.Basis)
		require.NotNil(t, n.Values[model.SugarG])
		assert.Equal(t, 12.0, *n.Values[model.SugarG])
		require.NotNil(t, n.Values[model.ProteinG])
		assert.Equal(t, 4.2, *n.Values[model.ProteinG])
		assert.Equal(t, 30.0, n.Micros["vitamin_c_mg"])
	})

	t.Run("double-encoded string shape", func(t *testing.T) {
		n := normalizeNutrition(json.RawMessage(`"{\"basis\": \"100ml\", \"values\": {\"salt_g\": 0.9}}"`))
		assert.Equal(t, model.Basis100ML, n.Basis)
		require.NotNil(t, n.Values[model.SaltG])
		assert.Equal(t, 0.9, *n.Values[model.SaltG])
	})

	t.Run("non-numeric value becomes null", func(t *testing.T) {
		n := normalizeNutrition(json.RawMessage(`{"values": {"sugar_g": "trace"}}`))
		assert.Nil(t, n.Values[model.SugarG])
	})

	t.Run("unknown basis defaults", func(t *testing.T) {
		n := normalizeNutrition(json.RawMessage(`{"basis": "per serving"}`))
		assert.Equal(t, model.BasisUnknown, n.Basis)
	})
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", `Here you go: {"a": 1} hope it helps`, `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
