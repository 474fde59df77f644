// Package taxonomy parses Open Food Facts taxonomy files into the JSON
// reference tables the catalog loads at startup. Taxonomy files are plain
// text split into blank-line-separated chunks; each chunk describes one
// entity with per-language synonym lines ("en: Curcumin, CI 75300"). The
// canonical id line differs per file, so every table carries an ordered
// prefix priority list ("< en:" parent refs before "en:" headers).
package taxonomy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/model"
)

// genericTerms are excluded from synonym tables to prevent over-matching:
// "vitamin" matching every vitamin row would make lookups useless.
var genericTerms = map[string]struct{}{
	"vitamin": {}, "mineral": {}, "additive": {}, "additive ingredient": {},
	"colour": {}, "color": {}, "colorant": {}, "nutrient": {},
	"nutrient value": {}, "allergen": {}, "food": {}, "ingredient": {},
	"alias": {}, "unknown": {}, "not applicable": {}, "none": {},
	"allergens-free": {}, "without allergens": {},
	"1": {}, "2": {}, "3": {}, "4": {},
}

// ignorePrefixes mark metadata or comment lines, never synonyms.
var ignorePrefixes = []string{
	"#", "//", "http", "https", "www",
	"description:", "stopwords:", "synonyms:", "wikidata:",
	"wikipedia:", "reference:", "date:", "uuid:",
}

// Entry is one parsed canonical entity, keyed by its canonical id in the
// output table. It marshals to the shape the catalog loads.
type Entry struct {
	NameEN   string   `json:"name_en"`
	NameTR   string   `json:"name_tr,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// ParseFile reads one taxonomy file and returns its canonical-id table.
func ParseFile(path string, priorities []string) (map[string]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return Parse(string(raw), priorities), nil
}

// Parse splits content into chunks and extracts one entry per chunk. Chunks
// without a recognizable canonical id line are skipped, not errors: taxonomy
// files carry plenty of prose blocks.
func Parse(content string, priorities []string) map[string]Entry {
	// Strip a UTF-8 BOM; several upstream files carry one.
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	out := make(map[string]Entry)
	for _, chunk := range strings.Split(content, "\n\n") {
		lines := chunkLines(chunk)
		if len(lines) == 0 || strings.HasPrefix(lines[0], "#") {
			continue
		}

		id := canonicalID(lines, priorities)
		if id == "" {
			continue
		}

		entry := Entry{}
		seen := map[string]struct{}{}
		addSynonym := func(s string) {
			key := cleanKey(s)
			if key == "" || len(key) < 2 || strings.Contains(key, "http") {
				return
			}
			if _, generic := genericTerms[key]; generic {
				return
			}
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			entry.Synonyms = append(entry.Synonyms, key)
		}

		addSynonym(id)

		for _, line := range lines {
			if isIgnored(line) {
				continue
			}
			lang, values, ok := splitLangLine(line)
			if !ok {
				continue
			}
			for _, v := range values {
				// The first en value often repeats the canonical code;
				// prefer the first real name after it.
				switch lang {
				case "en":
					if entry.NameEN == "" && !strings.EqualFold(v, id) {
						entry.NameEN = v
					}
				case "tr":
					if entry.NameTR == "" && !strings.EqualFold(v, id) {
						entry.NameTR = v
					}
				}
				addSynonym(v)
			}
		}

		if entry.NameEN == "" {
			entry.NameEN = id
		}
		out[id] = entry
	}
	return out
}

func chunkLines(chunk string) []string {
	var lines []string
	for _, l := range strings.Split(chunk, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// canonicalID scans the chunk for the highest-priority id line. Priorities
// are tried in order and the first prefix with a hit anywhere in the chunk
// wins, so "< en:" parent references beat plain "en:" headers when both
// appear.
func canonicalID(lines []string, priorities []string) string {
	for _, priority := range priorities {
		compact := strings.ReplaceAll(priority, " ", "")
		for _, line := range lines {
			var candidate string
			switch {
			case strings.HasPrefix(line, priority):
				candidate = extractID(line, priority)
			case strings.HasPrefix(line, compact):
				candidate = extractID(line, compact)
			}
			if candidate != "" {
				return candidate
			}
		}
	}
	return ""
}

// extractID pulls the canonical id out of an id line.
// "< en:E100 >" yields "E100"; "en: E100, Curcumin" yields "E100".
func extractID(line, prefix string) string {
	if strings.Contains(prefix, "<") {
		_, after, found := strings.Cut(line, "en:")
		if !found {
			return ""
		}
		return strings.TrimSpace(strings.ReplaceAll(after, ">", ""))
	}

	content := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if before, _, found := strings.Cut(content, ","); found {
		return strings.TrimSpace(before)
	}
	return content
}

// splitLangLine parses a "lang: val1, val2" synonym line.
func splitLangLine(line string) (lang string, values []string, ok bool) {
	before, after, found := strings.Cut(line, ":")
	if !found {
		return "", nil, false
	}
	after = strings.TrimSpace(after)
	if after == "" {
		return "", nil, false
	}
	for _, v := range strings.Split(after, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "", nil, false
	}
	return strings.ToLower(strings.TrimSpace(before)), values, true
}

func isIgnored(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range ignorePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func cleanKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func logParsed(category model.ReferenceCategory, entries int) {
	zap.L().Info("taxonomy: parsed table",
		zap.String("category", string(category)),
		zap.Int("entries", entries),
	)
}
