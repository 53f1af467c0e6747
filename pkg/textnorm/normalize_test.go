package textnorm

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

func TestNormalizeForSearchIndexing(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"James", "JAMES"},
		{"Jâmes", "JAMES"},
		{"Jámes", "JAMES"},
		{"Jámes", "JAMES"},
		{"Élodie", "ELODIE"},
		{"FRANÇOIS", "FRANCOIS"},
		{"Ñoño", "NONO"},
		{"naïve café", "NAIVE CAFE"},
		{"Привет", "ПРИВЕТ"},
		{"ά", "Α"},
		{"straße", "STRASSE"},
		{"Body height", "BODY HEIGHT"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeForSearchIndexing(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeForSearchIndexing(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeForSearchIndexing_AccentedMatchesPlain(t *testing.T) {
	pairs := [][2]string{
		{"James", "Jâmes"},
		{"Muller", "Müller"},
		{"Jose", "José"},
	}
	for _, p := range pairs {
		a, b := NormalizeForSearchIndexing(p[0]), NormalizeForSearchIndexing(p[1])
		if a != b {
			t.Errorf("%q -> %q and %q -> %q, want equal keys", p[0], a, p[1], b)
		}
	}
}

func TestNormalizeForSearchIndexing_KeepsOtherScripts(t *testing.T) {
	// Hebrew has no decomposition and no marks in the filtered block.
	if got := NormalizeForSearchIndexing("שלום"); got != "שלום" {
		t.Errorf("hebrew = %q, want unchanged", got)
	}
	// Hangul syllables decompose into conjoining jamo, which are kept.
	korean := "한국어"
	if got := NormalizeForSearchIndexing(korean); got != norm.NFD.String(korean) {
		t.Errorf("korean = %q, want decomposed %q", got, norm.NFD.String(korean))
	}
	// Marks outside U+0300..U+036F survive.
	if got := NormalizeForSearchIndexing("क़"); !strings.ContainsRune(got, '़') {
		t.Errorf("devanagari nukta dropped: %q", got)
	}
}

func TestNormalizeForSearchIndexing_Idempotent(t *testing.T) {
	for _, input := range []string{"Jâmes", "Élodie Dupont", "한국어", "straße", "Body   height", "ǰ", "ΐ"} {
		once := NormalizeForSearchIndexing(input)
		twice := NormalizeForSearchIndexing(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestNormalizeForSearchIndexing_ASCIIEqualsUpper(t *testing.T) {
	for _, input := range []string{"body height", "Blood Pressure 120/80", "a-b_c.d", "MiXeD 42"} {
		if got, want := NormalizeForSearchIndexing(input), strings.ToUpper(input); got != want {
			t.Errorf("NormalizeForSearchIndexing(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSearchIndexer_Turkish(t *testing.T) {
	tr := NewSearchIndexer(language.Turkish)
	if got := tr.Normalize("istanbul"); got != "İSTANBUL" {
		t.Errorf("turkish = %q, want İSTANBUL", got)
	}
	if got := NormalizeForSearchIndexing("istanbul"); got != "ISTANBUL" {
		t.Errorf("und = %q, want ISTANBUL", got)
	}
}

func TestChompTrailing(t *testing.T) {
	tests := []struct {
		input string
		c     rune
		want  string
	}{
		{"", 'a', ""},
		{"aaab", 'a', "aaab"},
		{"baaa", 'a', "b"},
		{"aaaa", 'a', ""},
		{"http://example.org/fhir///", '/', "http://example.org/fhir"},
		{"café", 'é', "caf"},
	}
	for _, tt := range tests {
		got := ChompTrailing(tt.input, tt.c)
		if got != tt.want {
			t.Errorf("ChompTrailing(%q, %q) = %q, want %q", tt.input, tt.c, got, tt.want)
		}
	}
}

func TestGetNormalizer(t *testing.T) {
	tests := []struct {
		mode  string
		input string
		want  string
	}{
		{"search_index", "Élodie", "ELODIE"},
		{"lowercase_ascii", "Élodie", "elodie"},
		{"upper", "Élodie", "ÉLODIE"},
		{"none", "Élodie", "Élodie"},
		{"", "Élodie", "ELODIE"},
		{"unknown_mode", "Élodie", "ELODIE"},
	}
	for _, tt := range tests {
		fn := GetNormalizer(tt.mode)
		got := fn(tt.input)
		if got != tt.want {
			t.Errorf("GetNormalizer(%q)(%q) = %q, want %q", tt.mode, tt.input, got, tt.want)
		}
	}
}

func TestGetNormalizerForLanguage(t *testing.T) {
	tests := []struct {
		mode, lang, input, want string
	}{
		{"search_index", "tr", "ilaç", "İLAC"},
		{"", "tr", "ilaç", "İLAC"},
		{"search_index", "", "ilaç", "ILAC"},
		{"search_index", "not a tag!!", "ilaç", "ILAC"},
		{"lowercase_ascii", "tr", "İlaç", NormalizeLowercaseASCII("İlaç")},
	}
	for _, tt := range tests {
		got := GetNormalizerForLanguage(tt.mode, tt.lang)(tt.input)
		if got != tt.want {
			t.Errorf("GetNormalizerForLanguage(%q, %q)(%q) = %q, want %q", tt.mode, tt.lang, tt.input, got, tt.want)
		}
	}
}

func TestIsMode(t *testing.T) {
	for _, m := range []string{"", ModeSearchIndex, ModeLowercaseASCII, ModeUpper, ModeNone} {
		if !IsMode(m) {
			t.Errorf("IsMode(%q) = false", m)
		}
	}
	if IsMode("soundex") {
		t.Error("IsMode(soundex) = true")
	}
}
