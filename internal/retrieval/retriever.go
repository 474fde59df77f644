// Package retrieval enriches risk classification with clinical and
// regulatory evidence retrieved from a pre-built vector index. Retrieval is
// advisory: every failure degrades to a placeholder instead of propagating.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/catalog"
	"github.com/labelsense/labelsense/pkg/chroma"
)

// Placeholder strings returned instead of evidence when the index yields
// nothing or cannot be reached.
const (
	PlaceholderUnavailable = "No clinical evidence available (retrieval service unreachable)."
	PlaceholderNoResults   = "No specific clinical guidelines found for these ingredients."
)

// additiveCode matches additive codes such as "E330", "e-102" or "E160a".
var additiveCode = regexp.MustCompile(`^[A-Za-z]-?[0-9]{2,4}[a-z]?$`)

// Retriever queries the clinical evidence index, expanding bare additive
// codes into descriptive phrases via the reference catalog first. A bare
// "E102" retrieves almost nothing; "E102 (Tartrazine) is a colour." recalls
// the relevant passages.
type Retriever struct {
	index   chroma.Client
	catalog *catalog.Catalog
}

// New constructs a Retriever. Both collaborators are read-only and shared
// across concurrent analyses.
func New(index chroma.Client, cat *catalog.Catalog) *Retriever {
	return &Retriever{index: index, catalog: cat}
}

// Retrieve returns up to k ranked evidence passages for the given terms as a
// citation-formatted block. degraded is true when the index was unreachable
// and the returned text is only a placeholder.
func (r *Retriever) Retrieve(ctx context.Context, terms []string, k int) (text string, degraded bool) {
	if len(terms) == 0 {
		return "", false
	}

	query := r.buildQuery(terms)

	resp, err := r.index.Query(ctx, chroma.QueryRequest{QueryText: query, K: k})
	if err != nil {
		zap.L().Warn("retrieval: evidence query failed", zap.Error(err))
		return PlaceholderUnavailable, true
	}
	if len(resp.Passages) == 0 {
		return PlaceholderNoResults, false
	}

	var b strings.Builder
	for i, p := range resp.Passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := p.Source
		if source == "" {
			source = "Unknown Source"
		}
		content := strings.TrimSpace(strings.ReplaceAll(p.Content, "\n", " "))
		fmt.Fprintf(&b, "EVIDENCE #%d (Source: %s, Page: %d):\n%q", i+1, source, p.Page, content)
	}
	return b.String(), false
}

// buildQuery expands additive codes into descriptive phrases and joins all
// terms into one composite query.
func (r *Retriever) buildQuery(terms []string) string {
	enriched := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if additiveCode.MatchString(term) {
			if desc := r.catalog.AdditiveDescription(term); desc != "" {
				enriched = append(enriched, desc)
				continue
			}
		}
		enriched = append(enriched, term)
	}
	return strings.Join(enriched, ". ")
}
