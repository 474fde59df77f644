package taxonomy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/labelsense/labelsense/internal/catalog"
	"github.com/labelsense/labelsense/internal/model"
)

// Table configures one taxonomy source file in the build manifest.
type Table struct {
	Category   model.ReferenceCategory `yaml:"category"`
	Source     string                  `yaml:"source"`
	Priorities []string                `yaml:"priorities"`
}

// Manifest drives a dictionary build: which taxonomy files to parse, with
// which canonical-prefix priorities, into which catalog tables.
type Manifest struct {
	Tables []Table `yaml:"tables"`
}

// DefaultManifest covers the seven standard Open Food Facts taxonomy files.
func DefaultManifest() *Manifest {
	return &Manifest{Tables: []Table{
		{Category: model.CategoryAdditives, Source: "additives.txt", Priorities: []string{"< en:", "en:"}},
		{Category: model.CategoryMinerals, Source: "minerals.txt", Priorities: []string{"< en:", "en:"}},
		{Category: model.CategoryVitamins, Source: "vitamins.txt", Priorities: []string{"< en:", "en:"}},
		// Food and NOVA groups key on the child group name, never the
		// "< en:" parent reference.
		{Category: model.CategoryFoodGroups, Source: "food_groups.txt", Priorities: []string{"en:"}},
		{Category: model.CategoryNovaGroups, Source: "nova_groups.txt", Priorities: []string{"en:"}},
		{Category: model.CategoryAllergens, Source: "allergens.txt", Priorities: []string{"en:"}},
		{Category: model.CategoryNutrients, Source: "nutrients.txt", Priorities: []string{"zz:"}},
	}}
}

// LoadManifest reads a YAML build manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse manifest")
	}
	if len(m.Tables) == 0 {
		return nil, eris.New("taxonomy: manifest lists no tables")
	}
	for _, t := range m.Tables {
		if t.Category == "" || t.Source == "" || len(t.Priorities) == 0 {
			return nil, eris.Errorf("taxonomy: incomplete manifest table %q", t.Category)
		}
	}
	return &m, nil
}

// Build parses every manifest table from rawDir and writes the catalog JSON
// files into outDir. A missing source file is logged and skipped so a partial
// raw-file set still produces the tables it can.
func (m *Manifest) Build(rawDir, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "taxonomy: create %s", outDir)
	}

	for _, t := range m.Tables {
		src := filepath.Join(rawDir, t.Source)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			zap.L().Warn("taxonomy: source file missing",
				zap.String("category", string(t.Category)),
				zap.String("file", src),
			)
			continue
		}

		entries, err := ParseFile(src, t.Priorities)
		if err != nil {
			return err
		}
		logParsed(t.Category, len(entries))

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "taxonomy: marshal %s", t.Category)
		}
		out := filepath.Join(outDir, catalog.FileName(t.Category))
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return eris.Wrapf(err, "taxonomy: write %s", out)
		}
	}
	return nil
}
