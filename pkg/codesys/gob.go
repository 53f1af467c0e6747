// CLAUDE:SUMMARY Gob snapshot of a code system's concept map, written by importers and preferred over CSV at load time.
package codesys

import (
	"encoding/gob"
	"fmt"
	"os"
)

func (cs *CodeSystem) loadGob(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gob file: %w", err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&cs.Concepts); err != nil {
		return fmt.Errorf("decode gob: %w", err)
	}
	return nil
}

// SaveGob writes concepts keyed by code to path.
func SaveGob(concepts map[string]*Concept, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gob file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(concepts); err != nil {
		f.Close()
		return fmt.Errorf("encode gob: %w", err)
	}
	return f.Close()
}
