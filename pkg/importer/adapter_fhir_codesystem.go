// CLAUDE:SUMMARY Imports HL7 FHIR R4 CodeSystem JSON resources, flattening nested concept hierarchies.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/textnorm"
)

func init() {
	Register(&fhirCodeSystemAdapter{
		id:           "hl7-administrative-gender",
		codeSystemID: "administrative-gender",
		description:  "HL7 FHIR AdministrativeGender",
		url:          "https://hl7.org/fhir/R4/codesystem-administrative-gender.json",
	})
	Register(&fhirCodeSystemAdapter{
		id:           "hl7-observation-category",
		codeSystemID: "observation-category",
		description:  "HL7 FHIR Observation Category Codes",
		url:          "https://hl7.org/fhir/R4/codesystem-observation-category.json",
	})
	Register(&fhirCodeSystemAdapter{
		id:           "hl7-condition-clinical",
		codeSystemID: "condition-clinical",
		description:  "HL7 FHIR Condition Clinical Status Codes",
		url:          "https://hl7.org/fhir/R4/codesystem-condition-clinical.json",
	})
}

type fhirCodeSystemAdapter struct {
	id           string
	codeSystemID string
	description  string
	url          string
}

func (a *fhirCodeSystemAdapter) ID() string           { return a.id }
func (a *fhirCodeSystemAdapter) CodeSystemID() string { return a.codeSystemID }
func (a *fhirCodeSystemAdapter) Description() string  { return a.description }
func (a *fhirCodeSystemAdapter) DefaultURL() string   { return a.url }
func (a *fhirCodeSystemAdapter) License() string      { return "CC0-1.0" }

func (a *fhirCodeSystemAdapter) Import(ctx context.Context, sourceURL, outputDir string) error {
	return withDownloadDir(outputDir, func(dlDir string) error {
		jsonPath := filepath.Join(dlDir, a.codeSystemID+".json")
		slog.Info("downloading FHIR CodeSystem", "adapter", a.id, "url", sourceURL)
		if err := downloadFile(ctx, sourceURL, jsonPath); err != nil {
			return err
		}

		raw, err := os.ReadFile(jsonPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", jsonPath, err)
		}
		res, err := parseFHIRCodeSystem(raw)
		if err != nil {
			return err
		}

		concepts := res.flatten()
		m := &codesys.Manifest{
			ID:        a.codeSystemID,
			URL:       res.URL,
			Version:   res.Version,
			Name:      res.Title,
			Publisher: res.Publisher,
			Source:    a.description,
			SourceURL: sourceURL,
			License:   a.License(),
			DataFile:  "data.gob",
		}
		if m.Name == "" {
			m.Name = res.Name
		}
		if err := writeCodeSystem(outputDir, m, concepts); err != nil {
			return err
		}
		slog.Info("imported code system", "adapter", a.id, "code_system", a.codeSystemID, "concepts", len(concepts))
		return nil
	})
}

// fhirCodeSystem is the subset of a FHIR CodeSystem resource we read.
type fhirCodeSystem struct {
	ResourceType string        `json:"resourceType"`
	URL          string        `json:"url"`
	Version      string        `json:"version"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Publisher    string        `json:"publisher"`
	Concept      []fhirConcept `json:"concept"`
}

type fhirConcept struct {
	Code       string        `json:"code"`
	Display    string        `json:"display"`
	Definition string        `json:"definition"`
	Concept    []fhirConcept `json:"concept"`
}

// parseFHIRCodeSystem decodes a CodeSystem resource. A leading UTF-8 BOM is ignored.
func parseFHIRCodeSystem(raw []byte) (*fhirCodeSystem, error) {
	text := textnorm.DecodeUTF8SkippingBOM(raw)

	var res fhirCodeSystem
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("parse CodeSystem: %w", err)
	}
	if res.ResourceType != "CodeSystem" {
		return nil, fmt.Errorf("parse CodeSystem: unexpected resourceType %q", res.ResourceType)
	}
	res.URL = textnorm.ChompTrailing(res.URL, '/')
	return &res, nil
}

// flatten walks the concept tree depth-first. Child concepts carry a
// "parent" property with their parent's code.
func (res *fhirCodeSystem) flatten() map[string]*codesys.Concept {
	out := make(map[string]*codesys.Concept)
	var walk func(list []fhirConcept, parent string)
	walk = func(list []fhirConcept, parent string) {
		for _, fc := range list {
			if fc.Code == "" {
				continue
			}
			c := &codesys.Concept{Code: fc.Code, Display: fc.Display}
			if parent != "" || fc.Definition != "" {
				c.Properties = make(map[string]string, 2)
				if parent != "" {
					c.Properties["parent"] = parent
				}
				if fc.Definition != "" {
					c.Properties["definition"] = fc.Definition
				}
			}
			if _, dup := out[fc.Code]; !dup {
				out[fc.Code] = c
			}
			walk(fc.Concept, fc.Code)
		}
	}
	walk(res.Concept, "")
	return out
}
