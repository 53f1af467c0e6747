package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isTokenSeparator matches the classic tokenizer delimiters: space, tab,
// newline, carriage return and form feed. No other whitespace splits.
func isTokenSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// Tokens splits s into whitespace-delimited tokens. Runs of separators
// never produce empty tokens.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, isTokenSeparator)
}

// HasTokenWithPrefixFold reports whether any token of input starts with prefix,
// ignoring case. For "Body height", "bo" and "he" match, "ei" and "dy" do not.
func HasTokenWithPrefixFold(input, prefix string) bool {
	for _, tok := range Tokens(input) {
		if hasPrefixFold(tok, prefix) {
			return true
		}
	}
	return false
}

// hasPrefixFold compares rune by rune, so prefixes whose case variants have a
// different UTF-8 width (the Kelvin sign vs 'k') still line up.
func hasPrefixFold(s, prefix string) bool {
	for prefix != "" {
		if s == "" {
			return false
		}
		pr, pn := utf8.DecodeRuneInString(prefix)
		sr, sn := utf8.DecodeRuneInString(s)
		if !equalFoldRune(pr, sr) {
			return false
		}
		prefix, s = prefix[pn:], s[sn:]
	}
	return true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
