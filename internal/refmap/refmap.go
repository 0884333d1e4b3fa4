// Package refmap stores the backlink graph of a notebook: for every target
// note, the source notes that mention it and the references found in each.
package refmap

import (
	"slices"
	"sync"

	"github.com/starford/notegraph/internal/models"
)

// Map is keyed target first, then source. A target with no sources is never
// kept, so len(Sources(target)) is always the backlink count plus a possible
// self-declaration entry. Map is safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	entries map[string]map[string][]models.Reference
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]map[string][]models.Reference)}
}

// Add appends ref to the list at [target][source], creating both levels as
// needed. A nil ref only ensures the entry exists.
func (m *Map) Add(target, source string, ref *models.Reference) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, ok := m.entries[target]
	if !ok {
		sources = make(map[string][]models.Reference)
		m.entries[target] = sources
	}
	refs, ok := sources[source]
	if !ok {
		refs = []models.Reference{}
	}
	if ref != nil {
		refs = append(refs, *ref)
	}
	sources[source] = refs
}

// Delete removes the whole [target][source] entry and drops target once it
// has no sources left.
func (m *Map) Delete(target, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, ok := m.entries[target]
	if !ok {
		return
	}
	delete(sources, source)
	if len(sources) == 0 {
		delete(m.entries, target)
	}
}

// DeleteSource removes every entry recorded for source, under any target.
func (m *Map) DeleteSource(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for target, sources := range m.entries {
		delete(sources, source)
		if len(sources) == 0 {
			delete(m.entries, target)
		}
	}
}

// References returns a copy of the references from source to target.
func (m *Map) References(target, source string) []models.Reference {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries[target][source])
}

// has reports whether a [target][source] entry exists.
func (m *Map) has(target, source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[target][source]
	return ok
}

// Sources returns the sorted source paths recorded under target.
func (m *Map) Sources(target string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.entries[target]))
	for s := range m.entries[target] {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// targets returns every target path in sorted order.
func (m *Map) targets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.entries))
	for t := range m.entries {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Snapshot returns a deep copy of the map.
func (m *Map) Snapshot() map[string]map[string][]models.Reference {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string][]models.Reference, len(m.entries))
	for target, sources := range m.entries {
		cp := make(map[string][]models.Reference, len(sources))
		for source, refs := range sources {
			cp[source] = slices.Clone(refs)
		}
		out[target] = cp
	}
	return out
}

// size returns the number of targets.
func (m *Map) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset drops every entry.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]map[string][]models.Reference)
}
