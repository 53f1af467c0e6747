package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Adapter downloads a terminology source, converts it to concepts and
// writes a code system directory (data.gob + manifest.yaml).
type Adapter interface {
	// ID returns the unique identifier of this adapter (e.g. "cdc-icd10cm").
	ID() string
	// CodeSystemID returns the target code system directory (e.g. "icd10cm").
	CodeSystemID() string
	// Description returns a human-readable description.
	Description() string
	// DefaultURL is the source URL seeded into the source database.
	DefaultURL() string
	// License returns the license of the source (e.g. "CC0-1.0").
	License() string
	// Import fetches sourceURL and writes outputDir/CodeSystemID().
	Import(ctx context.Context, sourceURL, outputDir string) error
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register adds an adapter to the process-wide registry.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	adapters[a.ID()] = a
}

// Get returns a registered adapter by ID.
func Get(id string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown import source: %q", id)
	}
	return a, nil
}

// All returns every registered adapter sorted by ID.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
