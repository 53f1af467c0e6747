package codesys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()

	// Vital signs, LOINC style.
	d1 := filepath.Join(dir, "loinc-vitals")
	os.MkdirAll(d1, 0o755)
	os.WriteFile(filepath.Join(d1, "manifest.yaml"), []byte(`id: loinc-vitals
url: http://loinc.org
version: "2.77"
publisher: Regenstrief Institute
source: test
data_file: data.csv
format:
  delimiter: ";"
  has_header: true
  code_column: "code"
  display_column: "display"
`), 0o644)
	os.WriteFile(filepath.Join(d1, "data.csv"), []byte("code;display\n8302-2;Body height\n29463-7;Body weight\n8867-4;Heart rate\n"), 0o644)

	// Local observation codes sharing a display with LOINC.
	d2 := filepath.Join(dir, "local-obs")
	os.MkdirAll(d2, 0o755)
	os.WriteFile(filepath.Join(d2, "manifest.yaml"), []byte(`id: local-obs
url: http://hospital.example.org/fhir/CodeSystem/obs/
version: "1"
publisher: Example Hospital
source: test
format:
  delimiter: ";"
`), 0o644)
	os.WriteFile(filepath.Join(d2, "data.csv"), []byte("HT;Bódy HEIGHT\nTEMP;Température\n"), 0o644)

	// NPI identifiers.
	d3 := filepath.Join(dir, "npi")
	os.MkdirAll(d3, 0o755)
	os.WriteFile(filepath.Join(d3, "manifest.yaml"), []byte(`id: npi
url: http://hl7.org/fhir/sid/us-npi
publisher: CMS
source: regex
method: pattern
patterns:
  - name: npi
    regex: "^[12][0-9]{9}$"
    validator: npi
`), 0o644)

	reg := NewRegistry(dir)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg, dir
}

func TestRegistryLoad(t *testing.T) {
	reg, _ := setupRegistry(t)

	if reg.CodeSystemCount() != 3 {
		t.Errorf("CodeSystemCount = %d, want 3", reg.CodeSystemCount())
	}
	if reg.TotalConcepts() != 5 {
		t.Errorf("TotalConcepts = %d, want 5", reg.TotalConcepts())
	}
}

func TestSearch_Match(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("heart rate", nil)
	if result.Normalized != "HEART RATE" {
		t.Errorf("Normalized = %q, want HEART RATE", result.Normalized)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(result.Matches))
	}
	m := result.Matches[0]
	if m.CodeSystemID != "loinc-vitals" || m.Code != "8867-4" || m.System != "http://loinc.org" {
		t.Errorf("match = %+v", m)
	}
}

func TestSearch_MultiSystem(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("body height", nil)
	if len(result.Matches) != 2 {
		t.Fatalf("matches = %d, want 2 (local-obs + loinc-vitals)", len(result.Matches))
	}
	// Sorted by code system id: local-obs < loinc-vitals.
	if result.Matches[0].CodeSystemID != "local-obs" || result.Matches[1].CodeSystemID != "loinc-vitals" {
		t.Errorf("order = %s,%s", result.Matches[0].CodeSystemID, result.Matches[1].CodeSystemID)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("Xylocopal", nil)
	if len(result.Matches) != 0 {
		t.Errorf("matches = %d, want 0", len(result.Matches))
	}
	if result.Normalized != "XYLOCOPAL" {
		t.Errorf("Normalized = %q, want XYLOCOPAL", result.Normalized)
	}
}

func TestSearch_FilterCodeSystem(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("body height", &SearchOptions{CodeSystems: []string{"loinc-vitals"}})
	if len(result.Matches) != 1 || result.Matches[0].CodeSystemID != "loinc-vitals" {
		t.Errorf("matches = %+v, want loinc-vitals only", result.Matches)
	}
}

func TestSearch_FilterURL(t *testing.T) {
	reg, _ := setupRegistry(t)

	// Trailing slashes are ignored on both sides.
	result := reg.Search("body height", &SearchOptions{URLs: []string{"http://hospital.example.org/fhir/CodeSystem/obs//"}})
	if len(result.Matches) != 1 || result.Matches[0].Code != "HT" {
		t.Errorf("matches = %+v, want HT only", result.Matches)
	}
}

func TestSearch_FilterPublisher(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("body height", &SearchOptions{Publishers: []string{"Regenstrief Institute"}})
	if len(result.Matches) != 1 || result.Matches[0].Code != "8302-2" {
		t.Errorf("matches = %+v, want 8302-2 only", result.Matches)
	}

	result = reg.Search("body height", &SearchOptions{Publishers: []string{"nobody"}})
	if len(result.Matches) != 0 {
		t.Errorf("matches = %d, want 0", len(result.Matches))
	}
}

func TestSearch_Identifier(t *testing.T) {
	reg, _ := setupRegistry(t)

	result := reg.Search("1234567893", nil)
	if len(result.Matches) != 1 || result.Matches[0].CodeSystemID != "npi" {
		t.Fatalf("matches = %+v, want npi", result.Matches)
	}
	if result.Matches[0].Display != "npi" {
		t.Errorf("display = %q, want pattern name", result.Matches[0].Display)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	reg, _ := setupRegistry(t)

	for i := 0; i < 20; i++ {
		result := reg.Search("Body Height", nil)
		if len(result.Matches) != 2 {
			t.Fatalf("iteration %d: matches = %d, want 2", i, len(result.Matches))
		}
		if result.Matches[0].CodeSystemID != "local-obs" {
			t.Errorf("iteration %d: first = %q, want local-obs", i, result.Matches[0].CodeSystemID)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, _ := setupRegistry(t)

	m, err := reg.Lookup("loinc-vitals", "29463-7")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if m.Display != "Body weight" || m.Version != "2.77" {
		t.Errorf("match = %+v", m)
	}

	if _, err := reg.Lookup("loinc-vitals", "0000-0"); !errors.Is(err, ErrConceptNotFound) {
		t.Errorf("err = %v, want ErrConceptNotFound", err)
	}
	if _, err := reg.Lookup("snomed", "22298006"); !errors.Is(err, ErrUnknownCodeSystem) {
		t.Errorf("err = %v, want ErrUnknownCodeSystem", err)
	}
	if _, err := reg.Lookup("npi", "1234567890"); !errors.Is(err, ErrConceptNotFound) {
		t.Errorf("bad check digit: err = %v, want ErrConceptNotFound", err)
	}
}

func TestRegistryExpand(t *testing.T) {
	reg, _ := setupRegistry(t)

	exp, err := reg.Expand("local-obs", ExpandRequest{Filter: "temp"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if exp.Total != 1 || exp.Concepts[0].Code != "TEMP" {
		t.Errorf("expansion = %+v", exp)
	}

	if _, err := reg.Expand("npi", ExpandRequest{}); !errors.Is(err, ErrNotEnumerable) {
		t.Errorf("err = %v, want ErrNotEnumerable", err)
	}
	if _, err := reg.Expand("missing", ExpandRequest{}); !errors.Is(err, ErrUnknownCodeSystem) {
		t.Errorf("err = %v, want ErrUnknownCodeSystem", err)
	}
}

func TestListCodeSystems(t *testing.T) {
	reg, _ := setupRegistry(t)

	infos := reg.ListCodeSystems()
	if len(infos) != 3 {
		t.Fatalf("ListCodeSystems = %d, want 3", len(infos))
	}
	want := []string{"local-obs", "loinc-vitals", "npi"}
	for i, id := range want {
		if infos[i].ID != id {
			t.Errorf("infos[%d] = %q, want %q", i, infos[i].ID, id)
		}
	}
	if infos[0].URL != "http://hospital.example.org/fhir/CodeSystem/obs" {
		t.Errorf("URL = %q, want chomped", infos[0].URL)
	}
	if infos[2].Method != MethodPattern {
		t.Errorf("method = %q, want pattern", infos[2].Method)
	}
}

func TestReload(t *testing.T) {
	reg, dir := setupRegistry(t)

	d4 := filepath.Join(dir, "icd10")
	os.MkdirAll(d4, 0o755)
	os.WriteFile(filepath.Join(d4, "manifest.yaml"), []byte("id: icd10\nformat:\n  delimiter: \";\"\n"), 0o644)
	os.WriteFile(filepath.Join(d4, "data.csv"), []byte("R50.9;Fever, unspecified\n"), 0o644)

	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if reg.CodeSystemCount() != 4 {
		t.Errorf("after reload: %d code systems, want 4", reg.CodeSystemCount())
	}
}

func TestReload_FailureKeepsPrevious(t *testing.T) {
	reg, dir := setupRegistry(t)

	bad := filepath.Join(dir, "broken")
	os.MkdirAll(bad, 0o755)
	os.WriteFile(filepath.Join(bad, "manifest.yaml"), []byte("version: no id\n"), 0o644)

	if err := reg.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if reg.CodeSystemCount() != 3 {
		t.Errorf("CodeSystemCount = %d, want previous 3", reg.CodeSystemCount())
	}
}

func TestEmptyRegistry(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	if err := reg.Load(); err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if reg.CodeSystemCount() != 0 || reg.TotalConcepts() != 0 {
		t.Errorf("count=%d total=%d, want 0", reg.CodeSystemCount(), reg.TotalConcepts())
	}
	if result := reg.Search("anything", nil); len(result.Matches) != 0 {
		t.Errorf("matches = %d, want 0", len(result.Matches))
	}
}
