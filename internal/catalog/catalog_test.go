package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelsense/labelsense/internal/model"
)

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	return Load("testdata")
}

func TestLoad_MissingFilesYieldEmptyTables(t *testing.T) {
	c := loadFixture(t)

	// minerals_multi.json does not exist in testdata; the category must
	// still be queryable.
	assert.Equal(t, 0, c.Size(model.CategoryMinerals))
	_, ok := c.Lookup("magnesium")
	assert.False(t, ok)
}

func TestLoad_MalformedFileYieldsEmptyTable(t *testing.T) {
	c := loadFixture(t)
	// vitamins_multi.json is intentionally broken JSON.
	assert.Equal(t, 0, c.Size(model.CategoryVitamins))
}

func TestLookup_SynonymBeforeCanonical(t *testing.T) {
	c := loadFixture(t)

	e, ok := c.Lookup("sitrik asit")
	require.True(t, ok)
	assert.Equal(t, "E330", e.ID)
	assert.Equal(t, model.CategoryAdditives, e.Category)

	// Canonical-id fallback.
	e, ok = c.Lookup("E102")
	require.True(t, ok)
	assert.Equal(t, "Tartrazine", e.NameEN)

	_, ok = c.Lookup("unobtainium")
	assert.False(t, ok)
}

func TestLookup_CaseAndDiacriticInsensitive(t *testing.T) {
	c := loadFixture(t)

	e, ok := c.Lookup("SÜT")
	require.True(t, ok)
	assert.Equal(t, "en:milk", e.ID)

	e, ok = c.Lookup("Sut")
	require.True(t, ok)
	assert.Equal(t, "en:milk", e.ID)
}

func TestAdditive_CodeNormalization(t *testing.T) {
	c := loadFixture(t)

	for _, code := range []string{"E330", "e330", "E-330", " e-330 "} {
		e, ok := c.Additive(code)
		require.True(t, ok, "code %q", code)
		assert.Equal(t, "Citric acid", e.NameEN)
	}

	_, ok := c.Additive("E999")
	assert.False(t, ok)
}

func TestAdditiveDescription(t *testing.T) {
	c := loadFixture(t)

	assert.Equal(t, "E330 (Citric acid) is a acidity regulator.", c.AdditiveDescription("E330"))
	assert.Empty(t, c.AdditiveDescription("E999"))
}

func TestIsKnownAllergen(t *testing.T) {
	c := loadFixture(t)

	assert.True(t, c.IsKnownAllergen("süt"))
	assert.True(t, c.IsKnownAllergen("Milk"))
	assert.True(t, c.IsKnownAllergen("buğday"))
	assert.False(t, c.IsKnownAllergen("su"))
}

func TestNutrientReference(t *testing.T) {
	c := loadFixture(t)

	e, ok := c.NutrientReference("Tuz")
	require.True(t, ok)
	assert.Equal(t, "Salt", e.NameEN)

	_, ok = c.NutrientReference("vitamin d")
	assert.False(t, ok)
}
