// CLAUDE:SUMMARY Manifest YAML schema for a code system: identity, canonical URL, CSV layout, property columns and identifier patterns.
package codesys

import (
	"fmt"
	"os"

	"github.com/hazyhaar/termindex/pkg/textnorm"
	"gopkg.in/yaml.v3"
)

// Load methods.
const (
	MethodTable   = "table"
	MethodPattern = "pattern"
)

// Manifest describes a code system: where it comes from and how to read it.
type Manifest struct {
	ID              string           `yaml:"id" json:"id"`
	URL             string           `yaml:"url" json:"url"`
	Version         string           `yaml:"version" json:"version"`
	Name            string           `yaml:"name" json:"name,omitempty"`
	Publisher       string           `yaml:"publisher" json:"publisher,omitempty"`
	Source          string           `yaml:"source" json:"source"`
	SourceURL       string           `yaml:"source_url" json:"source_url,omitempty"`
	License         string           `yaml:"license" json:"license"`
	DataFile        string           `yaml:"data_file" json:"data_file"`
	Method          string           `yaml:"method" json:"method,omitempty"`
	Format          FormatSpec       `yaml:"format" json:"-"`
	PropertyColumns []PropertyColumn `yaml:"property_columns" json:"-"`
	Patterns        []PatternSpec    `yaml:"patterns" json:"patterns,omitempty"`
}

// FormatSpec describes the CSV layout of a table code system.
type FormatSpec struct {
	Delimiter      string `yaml:"delimiter,omitempty"`
	Encoding       string `yaml:"encoding,omitempty"`
	HasHeader      bool   `yaml:"has_header,omitempty"`
	CodeColumn     string `yaml:"code_column,omitempty"`
	DisplayColumn  string `yaml:"display_column,omitempty"`
	Normalize      string `yaml:"normalize,omitempty"`
	CasingLanguage string `yaml:"casing_language,omitempty"`
}

// PropertyColumn maps a concept property name to a CSV column.
type PropertyColumn struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
}

// PatternSpec defines an identifier regex with an optional check digit validator.
type PatternSpec struct {
	Name      string `yaml:"name" json:"name"`
	Regex     string `yaml:"regex" json:"regex"`
	Validator string `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// LoadManifest reads and parses a manifest.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing id", path)
	}
	if m.DataFile == "" {
		m.DataFile = "data.csv"
	}
	if m.Method == "" {
		m.Method = MethodTable
	}
	if m.Method != MethodTable && m.Method != MethodPattern {
		return nil, fmt.Errorf("manifest %s: unknown method %q", path, m.Method)
	}
	// Canonical URLs are compared without trailing slashes.
	m.URL = textnorm.ChompTrailing(m.URL, '/')
	return &m, nil
}
