package routerconfig

import (
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/ragent/internal/changes"
)

// Set holds one sorted collection of entities per kind.
type Set struct {
	qualifier string
	entities  [numKinds][]Entity
}

// NewSet returns an empty set whose Add helpers derive names with qualifier.
// Sets built from retrieval use an empty qualifier and never call Add.
func NewSet(qualifier string) *Set {
	return &Set{qualifier: qualifier}
}

// NewDesiredSet returns an empty set that derives owned names.
func NewDesiredSet() *Set {
	return NewSet(Qualifier)
}

// AddAddress appends an address named <qualifier><prefix>. def.Name must be
// empty: identity is always derived.
func (s *Set) AddAddress(def Entity) {
	mustNotBeNamed(def, "address")
	def = def.Clone()
	def.Name = s.qualifier + def.Prefix
	s.entities[KindAddress] = append(s.entities[KindAddress], def)
}

// AddAutolink appends an autolink named <qualifier><addr>-<direction>.
func (s *Set) AddAutolink(def Entity) {
	mustNotBeNamed(def, "autolink")
	def = def.Clone()
	def.Name = s.qualifier + def.Addr + "-" + def.Direction
	s.entities[KindAutolink] = append(s.entities[KindAutolink], def)
}

// AddLinkroute appends a linkroute named <qualifier><prefix>-<direction>.
func (s *Set) AddLinkroute(def Entity) {
	mustNotBeNamed(def, "linkroute")
	def = def.Clone()
	def.Name = s.qualifier + def.Prefix + "-" + def.Direction
	s.entities[KindLinkroute] = append(s.entities[KindLinkroute], def)
}

// AddAutolinkPair adds one autolink per direction sharing every other field.
func (s *Set) AddAutolinkPair(def Entity) {
	for _, dir := range Directions {
		d := def
		d.Direction = dir
		s.AddAutolink(d)
	}
}

// AddLinkroutePair adds one linkroute per direction sharing every other field.
func (s *Set) AddLinkroutePair(def Entity) {
	for _, dir := range Directions {
		d := def
		d.Direction = dir
		s.AddLinkroute(d)
	}
}

func mustNotBeNamed(def Entity, singular string) {
	if def.Name != "" {
		panic(fmt.Sprintf("routerconfig: %s definition must not carry a name (got %q)", singular, def.Name))
	}
}

// Size returns the number of entities across every kind.
func (s *Set) Size() int {
	n := 0
	for i := range s.entities {
		n += len(s.entities[i])
	}
	return n
}

// Len returns the number of entities of one kind.
func (s *Set) Len(id KindID) int {
	return len(s.entities[id])
}

// Sort orders each kind by its comparator. Entities sharing a natural key
// are ordered owned first, then by name, so the result does not depend on
// the order the router listed them in and an owned copy always meets its
// desired counterpart in Diff.
func (s *Set) Sort() {
	for _, k := range kinds {
		slices.SortStableFunc(s.entities[k.ID], func(a, b Entity) int {
			if c := k.Compare(a, b); c != 0 {
				return c
			}
			return compareClaim(a, b)
		})
	}
}

func compareClaim(a, b Entity) int {
	if ao, bo := IsOwned(a), IsOwned(b); ao != bo {
		if ao {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// Entities returns a copy of the entities of one kind.
func (s *Set) Entities(id KindID) []Entity {
	return slices.Clone(s.entities[id])
}

// SetEntities replaces the entities of one kind.
func (s *Set) SetEntities(id KindID, list []Entity) {
	s.entities[id] = slices.Clone(list)
}

// Append adds entities of one kind without deriving names.
func (s *Set) Append(id KindID, list ...Entity) {
	s.entities[id] = append(s.entities[id], list...)
}

// Clone returns a deep copy of s.
func (s *Set) Clone() *Set {
	out := &Set{qualifier: s.qualifier}
	for i := range s.entities {
		if s.entities[i] == nil {
			continue
		}
		out.entities[i] = make([]Entity, len(s.entities[i]))
		for j, e := range s.entities[i] {
			out.entities[i][j] = e.Clone()
		}
	}
	return out
}

// Counts returns entity counts keyed by kind name.
func (s *Set) Counts() map[string]int {
	out := make(map[string]int, numKinds)
	for _, k := range kinds {
		out[k.Name] = len(s.entities[k.ID])
	}
	return out
}

// Snapshot returns the entities keyed by kind name.
func (s *Set) Snapshot() map[string][]Entity {
	out := make(map[string][]Entity, numKinds)
	for _, k := range kinds {
		out[k.Name] = s.Entities(k.ID)
	}
	return out
}

// Validate checks every entity against its kind and rejects duplicate names
// within a kind.
func (s *Set) Validate() error {
	for _, k := range kinds {
		seen := make(map[string]struct{}, len(s.entities[k.ID]))
		for _, e := range s.entities[k.ID] {
			if err := k.Validate(e); err != nil {
				return err
			}
			if _, dup := seen[e.Name]; dup {
				return fmt.Errorf("%w: duplicate %s name %q", ErrInvalidEntity, k.Singular, e.Name)
			}
			seen[e.Name] = struct{}{}
		}
	}
	return nil
}

// Diff computes the delta of one kind between actual and desired. Both sets
// must be sorted.
func Diff(id KindID, actual, desired *Set) *changes.Delta[Entity] {
	k := kinds[id]
	return changes.Compute(actual.entities[id], desired.entities[id], k.Compare, k.Equal)
}
