package enrich

import (
	"regexp"
	"strings"
)

/*
Preservation-invariant validation

An enhancement is valid iff its annotation-stripped, normalized form is
exactly equal to the same normalization applied to the original
paragraph. This is the only thing standing between "the model added a
clarifying aside" and "the model silently rewrote the sentence".
*/

var annotationSpan = regexp.MustCompile(`\s*\[\[[^\]]*\]\]`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// terminologyTable unifies spelling variants of Bahá'í-family terms that
// differ only in diacritics or transliteration ahead of comparison, so a
// model normalizing "Baha'i" to "Bahá'í" (or vice versa) is not flagged
// as a rewrite. Ordered longest-variant-first: both sides of the
// comparison must normalize identically, so replacement order has to be
// fixed ("'abdu'l-baha" before its unprefixed substring).
var terminologyTable = []struct {
	variant   string
	canonical string
}{
	{"'abdu'l-baha", "abdulbaha"},
	{"abdu'l-baha", "abdulbaha"},
	{"baha'u'llah", "bahaullah"},
	{"baha'i", "bahai"},
}

var accentedVowels = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
)

var curlyQuotes = strings.NewReplacer(
	"‘", "'", "’", "'", "`", "'", "´", "'",
)

// stripAnnotations removes every [[...]] span and its leading whitespace.
func stripAnnotations(s string) string {
	return annotationSpan.ReplaceAllString(s, "")
}

// normalizeForComparison applies whitespace collapsing, lowercasing,
// apostrophe/accent normalization, and the terminology table.
func normalizeForComparison(s string) string {
	s = strings.ToLower(s)
	s = curlyQuotes.Replace(s)
	s = accentedVowels.Replace(s)
	s = applyTerminologyTable(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func applyTerminologyTable(s string) string {
	for _, entry := range terminologyTable {
		s = strings.ReplaceAll(s, entry.variant, entry.canonical)
	}
	return s
}

// isValidEnhancement implements the preservation equality check.
func isValidEnhancement(original, enhanced string) bool {
	withoutContext := stripAnnotations(enhanced)
	return normalizeForComparison(withoutContext) == normalizeForComparison(original)
}
