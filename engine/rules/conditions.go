// Package rules finds the rules whose patterns hold in a state and
// instantiates them as actions.
package rules

import (
	"sort"
	"strings"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// DefaultVar is the variable an empty subject or target stands for.
const DefaultVar = "?x"

// Bindings maps variable names ("?x") to entity IDs.
type Bindings map[string]string

// IsVar reports whether a term is a variable.
func IsVar(term string) bool {
	return term == "" || strings.HasPrefix(term, "?")
}

// Subject returns the subject term of p, defaulting to DefaultVar.
func Subject(p types.Predicate) string {
	if p.Subject == "" {
		return DefaultVar
	}
	return p.Subject
}

func (b Bindings) with(k, v string) Bindings {
	n := make(Bindings, len(b)+1)
	for bk, bv := range b {
		n[bk] = bv
	}
	n[k] = v
	return n
}

// Key returns a canonical string for b, used for ordering and dedupe.
func (b Bindings) Key() string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + b[k]
	}
	return strings.Join(parts, ",")
}

// candidates returns the entity IDs a term may denote under b.
// Variable names are normalized so an empty term means DefaultVar.
func candidates(term string, s *types.State, b Bindings) (name string, ids []string, bound bool) {
	if term == "" {
		term = DefaultVar
	}
	if !IsVar(term) {
		if state.HasEntity(s, term) {
			return term, []string{term}, true
		}
		return term, nil, true
	}
	if id, ok := b[term]; ok {
		if state.HasEntity(s, id) {
			return term, []string{id}, true
		}
		return term, nil, true
	}
	return term, state.EntityIDs(s), false
}

// holds checks an atomic predicate for a concrete subject.
func holds(p types.Predicate, s *types.State, subject string) bool {
	switch p.Type {
	case types.PredProperty:
		v, ok := state.GetProp(s, subject, p.Kind)
		return ok && v == p.Value

	case types.PredQuantityAbove, types.PredQuantityBelow:
		kind := p.Kind
		if kind == "" {
			kind = types.Quantitative
		}
		v, ok := state.GetProp(s, subject, kind)
		if !ok || !v.Numeric {
			return false
		}
		if p.Type == types.PredQuantityAbove {
			return v.Number > p.Value.Number
		}
		return v.Number < p.Value.Number

	case types.PredEntityType:
		return strings.EqualFold(s.Entities[subject].Type, p.Value.Text)

	case types.PredExists:
		return true

	default:
		return false
	}
}

// Match returns every extension of b under which p holds in s. Unbound
// variables are bound to each entity that satisfies p, in ID order.
func Match(p types.Predicate, s *types.State, b Bindings) []Bindings {
	switch p.Type {
	case types.PredNot:
		if len(MatchAll(p.Inner, s, b)) > 0 {
			return nil
		}
		return []Bindings{b}

	case types.PredAll:
		return MatchAll(p.Inner, s, b)

	case types.PredAny:
		var out []Bindings
		seen := map[string]bool{}
		for _, in := range p.Inner {
			for _, nb := range Match(in, s, b) {
				if k := nb.Key(); !seen[k] {
					seen[k] = true
					out = append(out, nb)
				}
			}
		}
		return out

	case types.PredRelation:
		return matchRelation(p, s, b)
	}

	name, ids, bound := candidates(p.Subject, s, b)
	var out []Bindings
	for _, id := range ids {
		if !holds(p, s, id) {
			continue
		}
		if bound {
			out = append(out, b)
		} else {
			out = append(out, b.with(name, id))
		}
	}
	return out
}

func matchRelation(p types.Predicate, s *types.State, b Bindings) []Bindings {
	subjName, subjects, subjBound := candidates(p.Subject, s, b)
	var out []Bindings
	for _, from := range subjects {
		sb := b
		if !subjBound {
			sb = b.with(subjName, from)
		}
		if p.Object == "" {
			if len(state.Outgoing(s, from, p.Relation)) > 0 {
				out = append(out, sb)
			}
			continue
		}
		objName, objects, objBound := candidates(p.Object, s, sb)
		for _, to := range objects {
			if !state.HasRelationship(s, from, p.Relation, to) {
				continue
			}
			if objBound {
				out = append(out, sb)
			} else {
				out = append(out, sb.with(objName, to))
			}
		}
	}
	return out
}

// MatchAll returns every extension of b under which all predicates hold.
// An empty conjunction holds once, with b unchanged.
func MatchAll(preds []types.Predicate, s *types.State, b Bindings) []Bindings {
	if b == nil {
		b = Bindings{}
	}
	frontier := []Bindings{b}
	for _, p := range preds {
		var next []Bindings
		for _, fb := range frontier {
			next = append(next, Match(p, s, fb)...)
		}
		if len(next) == 0 {
			return nil
		}
		frontier = next
	}
	return frontier
}

// Eval reports whether p holds in s under b. Variables left unbound are
// existential.
func Eval(p types.Predicate, s *types.State, b Bindings) bool {
	return len(Match(p, s, b)) > 0
}
