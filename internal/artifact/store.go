// Package artifact holds the in-memory artifact store and the correction
// change log for a pipeline run. Artifacts are named units of generated text;
// exactly one per run is the primary design, the rest are companions that
// must stay consistent with it.
package artifact

import (
	"fmt"
	"sort"
)

// Role tags an artifact as the top-level generated unit or a supporting one.
type Role int

const (
	RolePrimary Role = iota
	RoleCompanion
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleCompanion:
		return "companion"
	default:
		return "unknown"
	}
}

// Artifact is a single named unit of generated content.
type Artifact struct {
	Name    string
	Content string
	Role    Role
}

// Store is an ordered mapping from artifact name to content. Names are
// unique; insertion order is preserved so that re-validation always sees the
// same file set in the same order.
type Store struct {
	order  []string
	byName map[string]*Artifact
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byName: make(map[string]*Artifact)}
}

// Put inserts or replaces an artifact. Replacing keeps the original position
// in the ordering.
func (s *Store) Put(name, content string, role Role) {
	if a, ok := s.byName[name]; ok {
		a.Content = content
		a.Role = role
		return
	}
	s.order = append(s.order, name)
	s.byName[name] = &Artifact{Name: name, Content: content, Role: role}
}

// Get returns the artifact with the given name.
func (s *Store) Get(name string) (*Artifact, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Content returns the content of the named artifact, or "" if absent.
func (s *Store) Content(name string) string {
	if a, ok := s.byName[name]; ok {
		return a.Content
	}
	return ""
}

// SetContent replaces the content of an existing artifact in place.
func (s *Store) SetContent(name, content string) error {
	a, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown artifact %q", name)
	}
	a.Content = content
	return nil
}

// Len returns the number of artifacts.
func (s *Store) Len() int { return len(s.order) }

// Names returns artifact names in insertion order.
func (s *Store) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// All returns artifacts in insertion order.
func (s *Store) All() []*Artifact {
	out := make([]*Artifact, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Primary returns the artifact tagged RolePrimary. A well-formed run has
// exactly one; if decomposition ever produced more, the first by insertion
// order wins.
func (s *Store) Primary() (*Artifact, bool) {
	for _, name := range s.order {
		if s.byName[name].Role == RolePrimary {
			return s.byName[name], true
		}
	}
	return nil, false
}

// Companions returns all artifacts tagged RoleCompanion, in insertion order.
func (s *Store) Companions() []*Artifact {
	var out []*Artifact
	for _, name := range s.order {
		if s.byName[name].Role == RoleCompanion {
			out = append(out, s.byName[name])
		}
	}
	return out
}

// Merge copies every artifact from other into s, replacing on name collision.
func (s *Store) Merge(other *Store) {
	if other == nil {
		return
	}
	for _, a := range other.All() {
		s.Put(a.Name, a.Content, a.Role)
	}
}

// Snapshot returns a plain name→content map, for validators and tests.
func (s *Store) Snapshot() map[string]string {
	snap := make(map[string]string, len(s.order))
	for name, a := range s.byName {
		snap[name] = a.Content
	}
	return snap
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := NewStore()
	for _, a := range s.All() {
		c.Put(a.Name, a.Content, a.Role)
	}
	return c
}

// SortedNames returns artifact names in lexical order. Used where stable
// output matters more than insertion order (e.g. audit dumps).
func (s *Store) SortedNames() []string {
	names := s.Names()
	sort.Strings(names)
	return names
}
