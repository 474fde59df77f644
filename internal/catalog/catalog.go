// Package catalog provides the read-only reference catalog: static lookup
// tables mapping additive codes, allergen names, and nutrient names (in
// multiple languages) to canonical entries. Tables are built offline by the
// builddict command, loaded once at process start, and never written again,
// so concurrent readers need no locking.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/textnorm"
)

// table holds one category's synonym and canonical-id indexes.
type table struct {
	bySynonym map[string]*model.ReferenceEntry
	byID      map[string]*model.ReferenceEntry
}

func newTable() *table {
	return &table{
		bySynonym: make(map[string]*model.ReferenceEntry),
		byID:      make(map[string]*model.ReferenceEntry),
	}
}

// Catalog is the process-wide reference data service. Construct with Load
// and pass by reference; there is no global instance.
type Catalog struct {
	tables map[model.ReferenceCategory]*table
}

// FileName returns the JSON table file for a category, e.g.
// "additives_multi.json".
func FileName(cat model.ReferenceCategory) string {
	return string(cat) + "_multi.json"
}

// Load reads every category table from dir. Loading is all-or-nothing per
// category: a missing or unreadable file yields an empty table for that
// category (logged, never fatal), so a partial data directory does not block
// startup. Categories load concurrently.
func Load(dir string) *Catalog {
	c := &Catalog{tables: make(map[model.ReferenceCategory]*table, len(model.ReferenceCategories))}

	loaded := make([]*table, len(model.ReferenceCategories))
	var g errgroup.Group
	for i, cat := range model.ReferenceCategories {
		g.Go(func() error {
			loaded[i] = loadTable(filepath.Join(dir, FileName(cat)), cat)
			return nil
		})
	}
	_ = g.Wait()

	for i, cat := range model.ReferenceCategories {
		c.tables[cat] = loaded[i]
	}
	return c
}

// loadTable parses one category file into its indexes. Any failure returns
// an empty table rather than a partially populated one.
func loadTable(path string, cat model.ReferenceCategory) *table {
	t := newTable()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("catalog: reference file missing", zap.String("file", path))
		} else {
			zap.L().Error("catalog: read reference file", zap.String("file", path), zap.Error(err))
		}
		return t
	}

	var entries map[string]model.ReferenceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		zap.L().Error("catalog: parse reference file", zap.String("file", path), zap.Error(err))
		return newTable()
	}

	for id, e := range entries {
		entry := e
		entry.ID = id
		entry.Category = cat

		t.byID[canonicalKey(id)] = &entry
		for _, syn := range entry.Synonyms {
			if key := textnorm.Normalize(syn); key != "" {
				t.bySynonym[key] = &entry
			}
		}
		// Display names double as synonyms.
		for _, name := range []string{entry.NameEN, entry.NameTR} {
			if key := textnorm.Normalize(name); key != "" {
				t.bySynonym[key] = &entry
			}
		}
	}

	zap.L().Info("catalog: loaded reference table",
		zap.String("category", string(cat)),
		zap.Int("entries", len(entries)),
	)
	return t
}

// canonicalKey folds a canonical id like "e-330" or "E330 " to "E330".
func canonicalKey(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(id)) {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup resolves a free-form term to a reference entry, trying exact
// synonym matches in every category before canonical-id matches. The lookup
// is case- and diacritic-insensitive.
func (c *Catalog) Lookup(term string) (*model.ReferenceEntry, bool) {
	syn := textnorm.Normalize(term)
	if syn == "" {
		return nil, false
	}
	for _, cat := range model.ReferenceCategories {
		if e, ok := c.tables[cat].bySynonym[syn]; ok {
			return e, true
		}
	}
	id := canonicalKey(term)
	for _, cat := range model.ReferenceCategories {
		if e, ok := c.tables[cat].byID[id]; ok {
			return e, true
		}
	}
	return nil, false
}

// Additive resolves an additive code like "E330" or "e-330".
func (c *Catalog) Additive(code string) (*model.ReferenceEntry, bool) {
	e, ok := c.tables[model.CategoryAdditives].byID[canonicalKey(code)]
	return e, ok
}

// AdditiveDescription renders a short descriptive phrase for an additive
// code, used to enrich retrieval queries. Returns "" for unknown codes.
func (c *Catalog) AdditiveDescription(code string) string {
	e, ok := c.Additive(code)
	if !ok {
		return ""
	}
	name := e.NameEN
	if name == "" {
		name = e.ID
	}
	class := e.FunctionalClass
	if class == "" {
		class = "food additive"
	}
	return fmt.Sprintf("%s (%s) is a %s.", e.ID, name, class)
}

// IsKnownAllergen reports whether an ingredient name matches the allergen table.
func (c *Catalog) IsKnownAllergen(name string) bool {
	_, ok := c.tables[model.CategoryAllergens].bySynonym[textnorm.Normalize(name)]
	return ok
}

// NutrientReference looks a nutrient name up across the nutrients, vitamins,
// and minerals tables, in that order.
func (c *Catalog) NutrientReference(name string) (*model.ReferenceEntry, bool) {
	syn := textnorm.Normalize(name)
	for _, cat := range []model.ReferenceCategory{
		model.CategoryNutrients, model.CategoryVitamins, model.CategoryMinerals,
	} {
		if e, ok := c.tables[cat].bySynonym[syn]; ok {
			return e, true
		}
	}
	return nil, false
}

// Size returns the entry count of one category table.
func (c *Catalog) Size(cat model.ReferenceCategory) int {
	t, ok := c.tables[cat]
	if !ok {
		return 0
	}
	return len(t.byID)
}
