package codesys

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hazyhaar/termindex/pkg/textnorm"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var (
	ErrConceptNotFound   = errors.New("concept not found")
	ErrUnknownCodeSystem = errors.New("unknown code system")
	ErrNotEnumerable     = errors.New("code system cannot be enumerated")
)

// Concept is a single code with its display and optional properties.
type Concept struct {
	Code       string            `json:"code"`
	Display    string            `json:"display"`
	Properties map[string]string `json:"properties,omitempty"`
}

// CodeSystem is one loaded code system with its manifest and in-memory indexes.
type CodeSystem struct {
	Manifest *Manifest          `json:"manifest"`
	Concepts map[string]*Concept `json:"-"`

	normalize Normalizer
	patterns  *patternMatcher

	// codes is every code in sorted order; displayKeys holds the normalized
	// display per code and displayIndex the reverse mapping.
	codes        []string
	displayKeys  map[string]string
	displayIndex map[string][]string
}

// Normalizer is re-exported so callers of this package need not import textnorm.
type Normalizer = textnorm.Normalizer

// LoadCodeSystem reads a manifest.yaml and loads concepts from gob, csv, or patterns.
func LoadCodeSystem(dir string) (*CodeSystem, error) {
	manifest, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, err
	}

	cs := &CodeSystem{
		Manifest:  manifest,
		Concepts:  make(map[string]*Concept),
		normalize: textnorm.GetNormalizerForLanguage(manifest.Format.Normalize, manifest.Format.CasingLanguage),
	}

	if manifest.Method == MethodPattern {
		pm, err := compilePatterns(manifest.Patterns)
		if err != nil {
			return nil, fmt.Errorf("code system %s: %w", manifest.ID, err)
		}
		cs.patterns = pm
		cs.buildIndex()
		return cs, nil
	}

	// Gob takes priority over CSV.
	gobPath := filepath.Join(dir, "data.gob")
	if _, err := os.Stat(gobPath); err == nil {
		if err := cs.loadGob(gobPath); err != nil {
			return nil, fmt.Errorf("code system %s: %w", manifest.ID, err)
		}
		cs.buildIndex()
		return cs, nil
	}

	if err := cs.loadCSV(filepath.Join(dir, manifest.DataFile)); err != nil {
		return nil, fmt.Errorf("code system %s: %w", manifest.ID, err)
	}
	cs.buildIndex()
	return cs, nil
}

func (cs *CodeSystem) loadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	// Transcode declared legacy encodings; UTF-8 files may carry a BOM
	// that must not end up glued to the first header cell.
	var reader io.Reader
	if enc := cs.Manifest.Format.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		reader = transform.NewReader(f, e.NewDecoder())
	} else {
		reader = textnorm.NewBOMSkippingReader(f)
	}

	r := csv.NewReader(reader)
	if delim := cs.Manifest.Format.Delimiter; delim != "" {
		r.Comma = []rune(delim)[0]
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var header []string
	if cs.Manifest.Format.HasHeader {
		header, err = r.Read()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	codeIdx, err := columnIndex(header, cs.Manifest.Format.CodeColumn, 0)
	if err != nil {
		return err
	}
	displayIdx, err := columnIndex(header, cs.Manifest.Format.DisplayColumn, 1)
	if err != nil {
		return err
	}

	propIdx := make(map[string]int)
	for _, pc := range cs.Manifest.PropertyColumns {
		for i, h := range header {
			if h == pc.Column {
				propIdx[pc.Name] = i
				break
			}
		}
	}

	var duplicates int
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if codeIdx >= len(record) {
			continue
		}

		code := strings.TrimSpace(record[codeIdx])
		if code == "" {
			continue
		}

		c := &Concept{Code: code}
		if displayIdx < len(record) {
			c.Display = strings.TrimSpace(record[displayIdx])
		}
		if len(propIdx) > 0 {
			c.Properties = make(map[string]string, len(propIdx))
			for name, idx := range propIdx {
				if idx < len(record) {
					c.Properties[name] = strings.TrimSpace(record[idx])
				}
			}
		}
		if _, exists := cs.Concepts[code]; exists {
			duplicates++
		}
		cs.Concepts[code] = c
	}

	if duplicates > 0 {
		slog.Warn("duplicate codes in data file", "code_system", cs.Manifest.ID, "duplicates", duplicates)
	}
	return nil
}

// columnIndex resolves a named column against the header. Without a name
// (or without a header) the fallback position is used.
func columnIndex(header []string, name string, fallback int) (int, error) {
	if name == "" || header == nil {
		return fallback, nil
	}
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header %v", name, header)
}

func (cs *CodeSystem) buildIndex() {
	cs.codes = make([]string, 0, len(cs.Concepts))
	cs.displayKeys = make(map[string]string, len(cs.Concepts))
	cs.displayIndex = make(map[string][]string)

	for code, c := range cs.Concepts {
		cs.codes = append(cs.codes, code)
		key := cs.normalize(c.Display)
		cs.displayKeys[code] = key
		if key != "" {
			cs.displayIndex[key] = append(cs.displayIndex[key], code)
		}
	}
	sort.Strings(cs.codes)
	for _, codes := range cs.displayIndex {
		sort.Strings(codes)
	}
}

// Lookup returns the concept for an exact code.
func (cs *CodeSystem) Lookup(code string) (*Concept, bool) {
	if cs.patterns != nil {
		name, ok := cs.patterns.match(code)
		if !ok {
			return nil, false
		}
		return &Concept{Code: code, Display: name, Properties: map[string]string{"pattern": name}}, true
	}
	c, ok := cs.Concepts[code]
	return c, ok
}

// SearchDisplay returns the concepts whose normalized display equals the
// normalized text, in code order. Pattern systems treat text as an identifier.
func (cs *CodeSystem) SearchDisplay(text string) []*Concept {
	if cs.patterns != nil {
		if c, ok := cs.Lookup(strings.TrimSpace(text)); ok {
			return []*Concept{c}
		}
		return nil
	}
	codes := cs.displayIndex[cs.normalize(text)]
	if len(codes) == 0 {
		return nil
	}
	out := make([]*Concept, len(codes))
	for i, code := range codes {
		out[i] = cs.Concepts[code]
	}
	return out
}

// ExpandRequest selects a page of concepts whose display matches Filter.
// Count <= 0 means no limit.
type ExpandRequest struct {
	Filter string
	Offset int
	Count  int
}

// Expansion is one page of a filtered enumeration.
type Expansion struct {
	Total    int        `json:"total"`
	Offset   int        `json:"offset"`
	Concepts []*Concept `json:"concepts"`
}

// Expand enumerates concepts in code order. Every whitespace token of the
// filter must be a prefix of some token of the display; both sides go
// through the code system's normalizer first, so the default search_index
// mode matches "bo" and "BÓ" against "Body height".
func (cs *CodeSystem) Expand(req ExpandRequest) (*Expansion, error) {
	if cs.patterns != nil {
		return nil, fmt.Errorf("%s: %w", cs.Manifest.ID, ErrNotEnumerable)
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	filterTokens := textnorm.Tokens(cs.normalize(req.Filter))

	exp := &Expansion{Offset: req.Offset, Concepts: []*Concept{}}
	for _, code := range cs.codes {
		if !matchesAll(cs.displayKeys[code], filterTokens) {
			continue
		}
		exp.Total++
		if exp.Total <= req.Offset {
			continue
		}
		if req.Count > 0 && len(exp.Concepts) >= req.Count {
			continue
		}
		exp.Concepts = append(exp.Concepts, cs.Concepts[code])
	}
	return exp, nil
}

func matchesAll(display string, filterTokens []string) bool {
	for _, tok := range filterTokens {
		if !textnorm.HasTokenWithPrefixFold(display, tok) {
			return false
		}
	}
	return true
}

// NormalizeText applies this code system's normalizer.
func (cs *CodeSystem) NormalizeText(text string) string {
	return cs.normalize(text)
}

// Size is the number of enumerable concepts (0 for pattern systems).
func (cs *CodeSystem) Size() int {
	return len(cs.Concepts)
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
