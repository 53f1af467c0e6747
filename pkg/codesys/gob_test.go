package codesys

import (
	"path/filepath"
	"testing"
)

func TestSaveGobLoadGob(t *testing.T) {
	concepts := map[string]*Concept{
		"R50.9": {Code: "R50.9", Display: "Fever, unspecified", Properties: map[string]string{"chapter": "18"}},
		"J45":   {Code: "J45", Display: "Asthma"},
	}

	path := filepath.Join(t.TempDir(), "data.gob")
	if err := SaveGob(concepts, path); err != nil {
		t.Fatalf("SaveGob: %v", err)
	}

	cs := &CodeSystem{Concepts: make(map[string]*Concept)}
	if err := cs.loadGob(path); err != nil {
		t.Fatalf("loadGob: %v", err)
	}
	if len(cs.Concepts) != 2 {
		t.Fatalf("concepts = %d, want 2", len(cs.Concepts))
	}
	if cs.Concepts["R50.9"].Properties["chapter"] != "18" {
		t.Errorf("chapter = %q, want 18", cs.Concepts["R50.9"].Properties["chapter"])
	}
	if cs.Concepts["J45"].Display != "Asthma" {
		t.Errorf("display = %q, want Asthma", cs.Concepts["J45"].Display)
	}
}

func TestLoadCodeSystem_PrefersGob(t *testing.T) {
	dir := writeTestCodeSystem(t, "gob-pref", "search_index", loincCSV)
	csDir := filepath.Join(dir, "gob-pref")

	gobConcepts := map[string]*Concept{
		"GOB-1": {Code: "GOB-1", Display: "From gob"},
	}
	if err := SaveGob(gobConcepts, filepath.Join(csDir, "data.gob")); err != nil {
		t.Fatalf("SaveGob: %v", err)
	}

	cs, err := LoadCodeSystem(csDir)
	if err != nil {
		t.Fatalf("LoadCodeSystem: %v", err)
	}
	if _, ok := cs.Lookup("GOB-1"); !ok {
		t.Error("expected code GOB-1 from gob file")
	}
	if _, ok := cs.Lookup("8302-2"); ok {
		t.Error("code 8302-2 should not exist, gob takes priority over csv")
	}
	// The display index is rebuilt from gob data as well.
	if got := cs.SearchDisplay("from GOB"); len(got) != 1 {
		t.Errorf("SearchDisplay on gob data = %d, want 1", len(got))
	}
}

func TestLoadGob_FileNotFound(t *testing.T) {
	cs := &CodeSystem{Concepts: make(map[string]*Concept)}
	if err := cs.loadGob("/nonexistent/path/data.gob"); err == nil {
		t.Error("expected error for nonexistent gob file")
	}
}

func TestSaveGob_InvalidPath(t *testing.T) {
	if err := SaveGob(map[string]*Concept{}, "/nonexistent/dir/data.gob"); err == nil {
		t.Error("expected error for invalid path")
	}
}
