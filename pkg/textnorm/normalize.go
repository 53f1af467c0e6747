// CLAUDE:SUMMARY Search-index key normalization (NFD, combining-mark removal, upper-case) plus alternate strategies picked per code system.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningDiacriticals is the Combining Diacritical Marks block, U+0300..U+036F.
// Marks outside this block (Hebrew points, Devanagari signs...) are kept.
var combiningDiacriticals = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036F, Stride: 1}},
}

// SearchIndexer builds search keys for one casing language.
// The zero value upper-cases with language.Und.
type SearchIndexer struct {
	tag language.Tag
}

// NewSearchIndexer returns an indexer that upper-cases with the rules of tag.
func NewSearchIndexer(tag language.Tag) SearchIndexer {
	return SearchIndexer{tag: tag}
}

// Normalize decomposes s (NFD), drops combining diacritical marks and
// upper-cases what is left. "Jâmes" and "james" both become "JAMES".
func (ix SearchIndexer) Normalize(s string) string {
	if s == "" {
		return s
	}
	decomposed := norm.NFD.String(s)
	stripped, _, _ := transform.String(runes.Remove(runes.In(combiningDiacriticals)), decomposed)
	// Casers keep state between calls, one per call keeps this goroutine safe.
	return cases.Upper(ix.tag).String(stripped)
}

// NormalizeForSearchIndexing is the locale-independent search key used by every
// code system unless its manifest asks otherwise.
func NormalizeForSearchIndexing(s string) string {
	return SearchIndexer{tag: language.Und}.Normalize(s)
}

// ChompTrailing removes c from the end of s for as long as s ends with it.
func ChompTrailing(s string, c rune) string {
	return strings.TrimRight(s, string(c))
}

// Normalizer transforms a display or query before it is used as an index key.
type Normalizer func(string) string

// NormalizeLowercaseASCII lowercases and strips accents (e.g. Élodie -> elodie).
func NormalizeLowercaseASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// NormalizeUpper upper-cases but keeps accents.
func NormalizeUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// NormalizeNone returns the text unchanged.
func NormalizeNone(s string) string {
	return s
}

// Normalizer modes accepted by GetNormalizer.
const (
	ModeSearchIndex    = "search_index"
	ModeLowercaseASCII = "lowercase_ascii"
	ModeUpper          = "upper"
	ModeNone           = "none"
)

// IsMode reports whether mode names a normalizer. The empty mode is accepted.
func IsMode(mode string) bool {
	switch mode {
	case "", ModeSearchIndex, ModeLowercaseASCII, ModeUpper, ModeNone:
		return true
	}
	return false
}

// GetNormalizer returns the normalizer for the given mode.
// Unknown and empty modes fall back to search_index.
func GetNormalizer(mode string) Normalizer {
	switch mode {
	case ModeLowercaseASCII:
		return NormalizeLowercaseASCII
	case ModeUpper:
		return NormalizeUpper
	case ModeNone:
		return NormalizeNone
	default:
		return NormalizeForSearchIndexing
	}
}

// GetNormalizerForLanguage is GetNormalizer with a casing language for the
// search_index mode. An empty or unparsable lang means language.Und.
func GetNormalizerForLanguage(mode, lang string) Normalizer {
	if lang == "" || (mode != "" && mode != ModeSearchIndex) {
		return GetNormalizer(mode)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return GetNormalizer(mode)
	}
	return NewSearchIndexer(tag).Normalize
}
