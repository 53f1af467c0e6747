package codesys

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/hazyhaar/termindex/pkg/textnorm"
)

// Registry holds all loaded code systems and serves queries against them.
type Registry struct {
	mu      sync.RWMutex
	systems map[string]*CodeSystem
	dir     string
}

// NewRegistry creates an empty registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{
		systems: make(map[string]*CodeSystem),
		dir:     dir,
	}
}

// Load scans the directory and loads every code system. The previous set
// stays in place if any code system fails to load.
func (r *Registry) Load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read code system dir %s: %w", r.dir, err)
	}

	loaded := make(map[string]*CodeSystem)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "manifest.yaml")); err != nil {
			continue
		}
		cs, err := LoadCodeSystem(dir)
		if err != nil {
			return fmt.Errorf("load code system %s: %w", entry.Name(), err)
		}
		loaded[cs.Manifest.ID] = cs
	}

	r.mu.Lock()
	r.systems = loaded
	r.mu.Unlock()
	return nil
}

// Reload reloads every code system from disk.
func (r *Registry) Reload() error {
	return r.Load()
}

// Match is a concept found while searching across code systems.
type Match struct {
	CodeSystemID string            `json:"code_system_id"`
	System       string            `json:"system"`
	Version      string            `json:"version,omitempty"`
	Code         string            `json:"code"`
	Display      string            `json:"display"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// SearchResult is the answer to a display search.
type SearchResult struct {
	Text       string  `json:"text"`
	Normalized string  `json:"normalized"`
	Matches    []Match `json:"matches"`
}

// SearchOptions restricts a search. Empty slices mean no restriction.
type SearchOptions struct {
	CodeSystems []string
	URLs        []string
	Publishers  []string
}

func (o *SearchOptions) allows(m *Manifest) bool {
	if o == nil {
		return true
	}
	if len(o.CodeSystems) > 0 && !slices.Contains(o.CodeSystems, m.ID) {
		return false
	}
	if len(o.URLs) > 0 && !slices.Contains(o.URLs, m.URL) {
		return false
	}
	if len(o.Publishers) > 0 && !slices.Contains(o.Publishers, m.Publisher) {
		return false
	}
	return true
}

// Search finds concepts whose normalized display equals the normalized text.
// Code systems are visited in sorted ID order so results are deterministic.
func (r *Registry) Search(text string, opts *SearchOptions) *SearchResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := &SearchResult{
		Text:       text,
		Normalized: textnorm.NormalizeForSearchIndexing(text),
		Matches:    []Match{},
	}

	if opts != nil && len(opts.URLs) > 0 {
		o := *opts
		o.URLs = make([]string, len(opts.URLs))
		for i, u := range opts.URLs {
			o.URLs[i] = textnorm.ChompTrailing(u, '/')
		}
		opts = &o
	}

	for _, id := range r.sortedIDs() {
		cs := r.systems[id]
		if !opts.allows(cs.Manifest) {
			continue
		}

		for _, c := range cs.SearchDisplay(text) {
			result.Matches = append(result.Matches, Match{
				CodeSystemID: cs.Manifest.ID,
				System:       cs.Manifest.URL,
				Version:      cs.Manifest.Version,
				Code:         c.Code,
				Display:      c.Display,
				Properties:   c.Properties,
			})
		}
	}
	return result
}

// Lookup returns a concept from one code system.
func (r *Registry) Lookup(systemID, code string) (*Match, error) {
	cs, err := r.get(systemID)
	if err != nil {
		return nil, err
	}
	c, ok := cs.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%s|%s: %w", systemID, code, ErrConceptNotFound)
	}
	return &Match{
		CodeSystemID: cs.Manifest.ID,
		System:       cs.Manifest.URL,
		Version:      cs.Manifest.Version,
		Code:         c.Code,
		Display:      c.Display,
		Properties:   c.Properties,
	}, nil
}

// Expand enumerates a filtered page of one code system.
func (r *Registry) Expand(systemID string, req ExpandRequest) (*Expansion, error) {
	cs, err := r.get(systemID)
	if err != nil {
		return nil, err
	}
	return cs.Expand(req)
}

func (r *Registry) get(systemID string) (*CodeSystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.systems[systemID]
	if !ok {
		return nil, fmt.Errorf("%q: %w", systemID, ErrUnknownCodeSystem)
	}
	return cs, nil
}

// CodeSystemInfo is the public metadata of a loaded code system.
type CodeSystemInfo struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Version   string `json:"version"`
	Name      string `json:"name,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Method    string `json:"method"`
	Source    string `json:"source"`
	SourceURL string `json:"source_url,omitempty"`
	License   string `json:"license"`
	Concepts  int    `json:"concepts"`
}

// ListCodeSystems returns metadata for every loaded code system, sorted by ID.
func (r *Registry) ListCodeSystems() []CodeSystemInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]CodeSystemInfo, 0, len(r.systems))
	for _, id := range r.sortedIDs() {
		m := r.systems[id].Manifest
		infos = append(infos, CodeSystemInfo{
			ID:        m.ID,
			URL:       m.URL,
			Version:   m.Version,
			Name:      m.Name,
			Publisher: m.Publisher,
			Method:    m.Method,
			Source:    m.Source,
			SourceURL: m.SourceURL,
			License:   m.License,
			Concepts:  r.systems[id].Size(),
		})
	}
	return infos
}

// CodeSystemCount returns the number of loaded code systems.
func (r *Registry) CodeSystemCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.systems)
}

// TotalConcepts returns the number of enumerable concepts across code systems.
func (r *Registry) TotalConcepts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, cs := range r.systems {
		total += cs.Size()
	}
	return total
}

// sortedIDs must be called with r.mu held.
func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.systems))
	for id := range r.systems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
