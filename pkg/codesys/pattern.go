// CLAUDE:SUMMARY Identifier pattern systems: regex plus check digit validators (Luhn, NPI, LOINC mod 10, SNOMED CT Verhoeff).
package codesys

import (
	"fmt"
	"regexp"
	"strings"
)

type compiledPattern struct {
	name      string
	re        *regexp.Regexp
	validator func(string) bool
}

// patternMatcher holds the compiled patterns of a pattern code system.
type patternMatcher struct {
	patterns []compiledPattern
}

func compilePatterns(specs []PatternSpec) (*patternMatcher, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no patterns defined")
	}

	pm := &patternMatcher{patterns: make([]compiledPattern, 0, len(specs))}
	for _, spec := range specs {
		re, err := regexp.Compile(spec.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.Name, err)
		}
		cp := compiledPattern{name: spec.Name, re: re}
		switch spec.Validator {
		case "":
		case "luhn":
			cp.validator = validateLuhn
		case "npi":
			cp.validator = validateNPI
		case "loinc":
			cp.validator = validateLOINC
		case "verhoeff":
			cp.validator = validateVerhoeff
		default:
			return nil, fmt.Errorf("pattern %q: unknown validator %q", spec.Name, spec.Validator)
		}
		pm.patterns = append(pm.patterns, cp)
	}
	return pm, nil
}

// match returns the name of the first pattern accepting the identifier.
func (pm *patternMatcher) match(code string) (string, bool) {
	cleaned := strings.ReplaceAll(code, " ", "")
	for _, p := range pm.patterns {
		if !p.re.MatchString(cleaned) {
			continue
		}
		if p.validator != nil && !p.validator(cleaned) {
			continue
		}
		return p.name, true
	}
	return "", false
}

// validateLuhn checks a digit string whose last digit is a Luhn check digit.
func validateLuhn(s string) bool {
	if len(s) == 0 {
		return false
	}
	var sum int
	parity := len(s) % 2
	for i := 0; i < len(s); i++ {
		d := int(s[i]) - '0'
		if d < 0 || d > 9 {
			return false
		}
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// validateNPI checks a 10 digit US National Provider Identifier. The check
// digit is a Luhn digit computed with the 80840 card issuer prefix.
func validateNPI(s string) bool {
	if len(s) != 10 {
		return false
	}
	return validateLuhn("80840" + s)
}

// validateLOINC checks a LOINC code such as 8302-2. The mod 10 check digit
// after the hyphen is the Luhn digit of the number part.
func validateLOINC(s string) bool {
	num, check, ok := strings.Cut(s, "-")
	if !ok || len(num) == 0 || len(check) != 1 {
		return false
	}
	return validateLuhn(num + check)
}

var (
	verhoeffD = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
)

// validateVerhoeff checks the trailing Verhoeff digit used by SNOMED CT identifiers.
func validateVerhoeff(s string) bool {
	if len(s) == 0 {
		return false
	}
	c := 0
	for i := 0; i < len(s); i++ {
		d := int(s[len(s)-1-i]) - '0'
		if d < 0 || d > 9 {
			return false
		}
		c = verhoeffD[c][verhoeffP[i%8][d]]
	}
	return c == 0
}
