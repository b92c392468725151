// Package state manages world snapshots: entity and relationship
// mutation with copy-on-write property maps, lookups, and fingerprints.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/simcore/types"
)

// DefaultStrength is the weight given to relationships asserted without one.
const DefaultStrength = 1.0

// Kinds lists every property kind in canonical order.
var Kinds = []types.PropertyKind{
	types.Physical, types.Location, types.Temporal, types.Emotional,
	types.Relational, types.Quantitative, types.Categorical, types.Custom,
}

// New returns an empty, valid state at step 0.
func New() *types.State {
	return &types.State{
		Entities:      map[string]types.Entity{},
		Relationships: []types.Relationship{},
		Valid:         true,
	}
}

// Clone returns a snapshot that can be mutated without affecting s.
// Property maps are shared until written (see SetProp).
func Clone(s *types.State) *types.State {
	c := &types.State{
		Entities:      make(map[string]types.Entity, len(s.Entities)),
		Relationships: make([]types.Relationship, len(s.Relationships)),
		Step:          s.Step,
		Valid:         s.Valid,
	}
	for id, e := range s.Entities {
		c.Entities[id] = e
	}
	copy(c.Relationships, s.Relationships)
	return c
}

// Text returns a text value.
func Text(s string) types.Value {
	return types.Value{Text: s}
}

// Number returns a numeric value.
func Number(n float64) types.Value {
	return types.Value{Number: n, Numeric: true}
}

// FormatValue renders a value for display.
func FormatValue(v types.Value) string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// ParseKind maps a case-insensitive name to a property kind.
func ParseKind(name string) (types.PropertyKind, bool) {
	k := types.PropertyKind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// HasEntity reports whether id exists in s.
func HasEntity(s *types.State, id string) bool {
	_, ok := s.Entities[id]
	return ok
}

// AddEntity inserts an entity if no entity with the same ID exists.
// Returns true if it was added.
func AddEntity(s *types.State, id, typ string) bool {
	if _, ok := s.Entities[id]; ok {
		return false
	}
	s.Entities[id] = types.Entity{
		ID:        id,
		Type:      typ,
		Props:     map[types.PropertyKind]types.Value{},
		CreatedAt: s.Step,
	}
	return true
}

// GetProp returns the value of a property and whether it is set.
func GetProp(s *types.State, id string, kind types.PropertyKind) (types.Value, bool) {
	e, ok := s.Entities[id]
	if !ok {
		return types.Value{}, false
	}
	v, ok := e.Props[kind]
	return v, ok
}

// SetProp writes a property on an existing entity. The entity's map is
// copied before the write so clones never observe the change.
// Returns true if the state changed.
func SetProp(s *types.State, id string, kind types.PropertyKind, v types.Value) bool {
	e, ok := s.Entities[id]
	if !ok {
		return false
	}
	if cur, ok := e.Props[kind]; ok && cur == v {
		return false
	}
	props := make(map[types.PropertyKind]types.Value, len(e.Props)+1)
	for k, pv := range e.Props {
		props[k] = pv
	}
	props[kind] = v
	e.Props = props
	s.Entities[id] = e
	return true
}

// RemoveProp deletes a property. Returns true if the state changed.
func RemoveProp(s *types.State, id string, kind types.PropertyKind) bool {
	e, ok := s.Entities[id]
	if !ok {
		return false
	}
	if _, ok := e.Props[kind]; !ok {
		return false
	}
	props := make(map[types.PropertyKind]types.Value, len(e.Props))
	for k, pv := range e.Props {
		if k != kind {
			props[k] = pv
		}
	}
	e.Props = props
	s.Entities[id] = e
	return true
}

func relLess(a, b types.Relationship) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.To < b.To
}

func findRel(s *types.State, from, typ, to string) (int, bool) {
	key := types.Relationship{From: from, Type: typ, To: to}
	i := sort.Search(len(s.Relationships), func(i int) bool {
		return !relLess(s.Relationships[i], key)
	})
	if i < len(s.Relationships) {
		r := s.Relationships[i]
		if r.From == from && r.Type == typ && r.To == to {
			return i, true
		}
	}
	return i, false
}

// AddRelationship inserts r in sorted position, or updates the strength of
// an existing edge with the same (From, Type, To). Endpoints are not
// checked here; Validate reports dangling edges.
// Returns true if the state changed.
func AddRelationship(s *types.State, r types.Relationship) bool {
	i, found := findRel(s, r.From, r.Type, r.To)
	if found {
		if s.Relationships[i].Strength == r.Strength {
			return false
		}
		rels := make([]types.Relationship, len(s.Relationships))
		copy(rels, s.Relationships)
		rels[i].Strength = r.Strength
		s.Relationships = rels
		return true
	}
	rels := make([]types.Relationship, 0, len(s.Relationships)+1)
	rels = append(rels, s.Relationships[:i]...)
	rels = append(rels, r)
	rels = append(rels, s.Relationships[i:]...)
	s.Relationships = rels
	return true
}

// RemoveRelationship deletes the edge (from, typ, to).
// Returns true if the state changed.
func RemoveRelationship(s *types.State, from, typ, to string) bool {
	i, found := findRel(s, from, typ, to)
	if !found {
		return false
	}
	rels := make([]types.Relationship, 0, len(s.Relationships)-1)
	rels = append(rels, s.Relationships[:i]...)
	rels = append(rels, s.Relationships[i+1:]...)
	s.Relationships = rels
	return true
}

// HasRelationship reports whether the edge (from, typ, to) exists.
func HasRelationship(s *types.State, from, typ, to string) bool {
	_, found := findRel(s, from, typ, to)
	return found
}

// Outgoing returns the edges leaving id with the given type, in order.
// An empty typ matches every type.
func Outgoing(s *types.State, id, typ string) []types.Relationship {
	var out []types.Relationship
	for _, r := range s.Relationships {
		if r.From == id && (typ == "" || r.Type == typ) {
			out = append(out, r)
		}
	}
	return out
}

// EntityIDs returns all entity IDs in sorted order.
func EntityIDs(s *types.State) []string {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint returns a canonical string for the world content of s.
// Step and validity are excluded, so two states with equal fingerprints
// describe the same world.
func Fingerprint(s *types.State) string {
	var b strings.Builder
	for _, id := range EntityIDs(s) {
		e := s.Entities[id]
		fmt.Fprintf(&b, "%s:%s{", id, e.Type)
		for _, k := range Kinds {
			if v, ok := e.Props[k]; ok {
				fmt.Fprintf(&b, "%s=%s;", k, FormatValue(v))
			}
		}
		b.WriteString("}")
	}
	for _, r := range s.Relationships {
		fmt.Fprintf(&b, "|%s-%s->%s@%g", r.From, r.Type, r.To, r.Strength)
	}
	return b.String()
}

// Equal reports whether a and b describe the same world.
func Equal(a, b *types.State) bool {
	return Fingerprint(a) == Fingerprint(b)
}
