// Package effects implements centralized state mutation via the Apply function.
// Every effect type is one atomic operation. No logic in effects.
package effects

import (
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// Apply applies instantiated effects to s in order, mutating it. Later
// effects overwrite earlier ones on the same target. Effects whose target
// is still an unbound variable are skipped. Returns true if s changed.
func Apply(s *types.State, effs []types.Effect) bool {
	changed := false
	for _, eff := range effs {
		if isVar(eff.Target) {
			continue
		}
		if applyOne(s, eff) {
			changed = true
		}
	}
	return changed
}

func applyOne(s *types.State, eff types.Effect) bool {
	switch eff.Type {
	case types.EffSetProperty:
		return state.SetProp(s, eff.Target, eff.Kind, eff.Value)

	case types.EffRemoveProperty:
		return state.RemoveProp(s, eff.Target, eff.Kind)

	case types.EffAdjustQuantity:
		kind := eff.Kind
		if kind == "" {
			kind = types.Quantitative
		}
		if !state.HasEntity(s, eff.Target) {
			return false
		}
		cur, _ := state.GetProp(s, eff.Target, kind)
		return state.SetProp(s, eff.Target, kind, state.Number(cur.Number+eff.Delta))

	case types.EffAddRelationship:
		if isVar(eff.Object) {
			return false
		}
		strength := eff.Strength
		if strength == 0 {
			strength = state.DefaultStrength
		}
		return state.AddRelationship(s, types.Relationship{
			From:     eff.Target,
			Type:     eff.Relation,
			To:       eff.Object,
			Strength: strength,
		})

	case types.EffRemoveRelationship:
		return state.RemoveRelationship(s, eff.Target, eff.Relation, eff.Object)

	case types.EffCreateEntity:
		typ := eff.EntityType
		if typ == "" {
			typ = "Thing"
		}
		created := state.AddEntity(s, eff.Target, typ)
		if eff.Kind != "" && state.SetProp(s, eff.Target, eff.Kind, eff.Value) {
			return true
		}
		return created

	default:
		return false
	}
}

func isVar(term string) bool {
	return term == "" || term[0] == '?'
}

// Split separates a create_entity that also sets a property into the
// bare creation and a set_property, so each write can be resolved on its
// own. Any other effect is returned as is.
func Split(eff types.Effect) []types.Effect {
	if eff.Type != types.EffCreateEntity || eff.Kind == "" {
		return []types.Effect{eff}
	}
	create := eff
	create.Kind, create.Value = "", types.Value{}
	return []types.Effect{create, {
		Type:   types.EffSetProperty,
		Target: eff.Target,
		Kind:   eff.Kind,
		Value:  eff.Value,
	}}
}

// TargetKey returns the conflict key for one effect. Property writes are
// keyed by "entity/kind", relationship writes by "from-TYPE->to" and entity
// creation by "entity/". A create_entity carrying a property writes two
// targets; Split it first.
func TargetKey(eff types.Effect) string {
	switch eff.Type {
	case types.EffAddRelationship, types.EffRemoveRelationship:
		return eff.Target + "-" + eff.Relation + "->" + eff.Object
	case types.EffCreateEntity:
		return eff.Target + "/"
	default:
		kind := eff.Kind
		if kind == "" && eff.Type == types.EffAdjustQuantity {
			kind = types.Quantitative
		}
		return eff.Target + "/" + string(kind)
	}
}
