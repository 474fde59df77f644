// Package textnorm folds ingredient and profile strings into a stable ASCII
// form so that allergen matching and catalog lookups are insensitive to case,
// diacritics, and punctuation ("Süt Tozu" and "sut tozu" compare equal).
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes characters and removes combining marks, turning
// "şeker" into "seker" and "yağ" into "yag".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// dotlessI maps the Turkish i pair onto ASCII i. NFKD has no decomposition
// for ı, so without this "fındık" and "findik" would normalize differently.
var dotlessI = strings.NewReplacer("ı", "i", "İ", "i")

// Normalize lowercases s, strips diacritics, drops any rune that has no
// ASCII fold, and collapses runs of non-alphanumeric characters into single
// spaces.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, dotlessI.Replace(s))
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r > unicode.MaxASCII:
			// Characters with no ASCII fold are dropped, not spaced.
		default:
			space = true
		}
	}
	return b.String()
}

// Tokens returns the normalized words of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// TokensIntersect reports whether the normalized token sets of a and b share
// at least one word.
func TokensIntersect(a, b string) bool {
	set := make(map[string]struct{})
	for _, t := range Tokens(a) {
		set[t] = struct{}{}
	}
	for _, t := range Tokens(b) {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
