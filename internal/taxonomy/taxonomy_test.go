package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelsense/labelsense/internal/catalog"
	"github.com/labelsense/labelsense/internal/model"
)

const additivesFixture = `# Comment block at the top
# is skipped entirely.

< en:E100 >
en: E100, Curcumin, CI 75300
tr: Kurkumin
wikidata: Q312266

< en:E330
en: E330, Citric acid
tr: Sitrik asit, Limon tuzu

Some prose paragraph without any id line
that should be skipped.
`

const nutrientsFixture = `zz: salt, Salt
en: Salt
tr: Tuz
`

func TestParseChunks(t *testing.T) {
	entries := Parse(additivesFixture, []string{"< en:", "en:"})

	require.Len(t, entries, 2)

	curcumin, ok := entries["E100"]
	require.True(t, ok)
	assert.Equal(t, "Curcumin", curcumin.NameEN)
	assert.Equal(t, "Kurkumin", curcumin.NameTR)
	assert.Contains(t, curcumin.Synonyms, "curcumin")
	assert.Contains(t, curcumin.Synonyms, "ci 75300")
	assert.Contains(t, curcumin.Synonyms, "kurkumin")
	// wikidata metadata line is never a synonym
	assert.NotContains(t, curcumin.Synonyms, "q312266")

	citric, ok := entries["E330"]
	require.True(t, ok)
	assert.Contains(t, citric.Synonyms, "limon tuzu")
}

func TestParseCanonicalPriorityOrder(t *testing.T) {
	// With "en:" first, the header line wins over the parent reference.
	entries := Parse("< en:parent >\nen: child, Child Name\n", []string{"en:"})
	_, hasChild := entries["child"]
	assert.True(t, hasChild)

	entries = Parse("< en:parent >\nen: child, Child Name\n", []string{"< en:", "en:"})
	_, hasParent := entries["parent"]
	assert.True(t, hasParent)
}

func TestParseZZPrefix(t *testing.T) {
	entries := Parse(nutrientsFixture, []string{"zz:"})

	salt, ok := entries["salt"]
	require.True(t, ok)
	assert.Equal(t, "salt", salt.NameEN)
	assert.Equal(t, "Tuz", salt.NameTR)
	assert.Contains(t, salt.Synonyms, "tuz")
}

func TestParseFiltersGenericTerms(t *testing.T) {
	entries := Parse("en: E999, colour, additive, q\n", []string{"en:"})

	e, ok := entries["E999"]
	require.True(t, ok)
	assert.NotContains(t, e.Synonyms, "colour")
	assert.NotContains(t, e.Synonyms, "additive")
	// single-character garbage dropped too
	assert.NotContains(t, e.Synonyms, "q")
}

func TestParseStripsBOM(t *testing.T) {
	entries := Parse("\uFEFFen: E100, Curcumin\n", []string{"en:"})
	_, ok := entries["E100"]
	assert.True(t, ok)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tables:
  - category: additives
    source: additives.txt
    priorities: ["< en:", "en:"]
  - category: nutrients
    source: nutrients.txt
    priorities: ["zz:"]
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Tables, 2)
	assert.Equal(t, model.CategoryAdditives, m.Tables[0].Category)
	assert.Equal(t, []string{"zz:"}, m.Tables[1].Priorities)
}

func TestLoadManifestRejectsIncompleteTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - category: additives\n"), 0o644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestBuildProducesLoadableTables(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "additives.txt"), []byte(additivesFixture), 0o644))
	// nutrients.txt intentionally absent: Build skips it.

	m := &Manifest{Tables: []Table{
		{Category: model.CategoryAdditives, Source: "additives.txt", Priorities: []string{"< en:", "en:"}},
		{Category: model.CategoryNutrients, Source: "nutrients.txt", Priorities: []string{"zz:"}},
	}}
	require.NoError(t, m.Build(rawDir, outDir))

	cat := catalog.Load(outDir)
	assert.Equal(t, 2, cat.Size(model.CategoryAdditives))
	assert.Equal(t, 0, cat.Size(model.CategoryNutrients))

	entry, ok := cat.Lookup("Kurkumin")
	require.True(t, ok)
	assert.Equal(t, "E100", entry.ID)
}
