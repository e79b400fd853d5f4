package models

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is the context accumulated by a discovery loop: fetched resource
// content keyed by relative identifier, plus every identifier ever requested.
// Requested is a superset of the keys of Files because a failed fetch still
// counts as requested. A Snapshot only grows.
type Snapshot struct {
	Files     map[string]string
	Requested map[string]struct{}

	// Rejected lists identifiers the oracle named that are not in the catalog.
	Rejected []string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Files:     make(map[string]string),
		Requested: make(map[string]struct{}),
	}
}

// IsRequested reports whether id was already requested.
func (s *Snapshot) IsRequested(id string) bool {
	_, ok := s.Requested[id]
	return ok
}

// MarkRequested records id as requested without content.
func (s *Snapshot) MarkRequested(id string) {
	s.Requested[id] = struct{}{}
}

// Put stores content for id and marks it requested.
func (s *Snapshot) Put(id, content string) {
	s.Files[id] = content
	s.Requested[id] = struct{}{}
}

// Reject records an identifier that does not exist in the catalog.
func (s *Snapshot) Reject(id string) {
	for _, r := range s.Rejected {
		if r == id {
			return
		}
	}
	s.Rejected = append(s.Rejected, id)
}

// Paths returns the fetched identifiers in sorted order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RequestedList returns the requested identifiers in sorted order.
func (s *Snapshot) RequestedList() []string {
	ids := make([]string, 0, len(s.Requested))
	for id := range s.Requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len is the number of fetched entries.
func (s *Snapshot) Len() int { return len(s.Files) }

// Render formats the fetched content for an oracle prompt.
func (s *Snapshot) Render() string {
	if len(s.Files) == 0 {
		return "(no files loaded yet)\n"
	}
	var b strings.Builder
	for _, p := range s.Paths() {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", p, s.Files[p])
	}
	return b.String()
}
