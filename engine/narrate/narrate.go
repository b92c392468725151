// Package narrate renders states, actions and branch paths as short
// English sentences for the CLI, the TUI and episode summaries.
package narrate

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// Name returns the display name of an entity ID: "dark_forest" → "Dark Forest".
// Casers are stateful, so each call gets its own.
func Name(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// relation renders a relationship type: "LOCATED_IN" → "located in".
func relation(typ string) string {
	return strings.ToLower(strings.ReplaceAll(typ, "_", " "))
}

// Property describes one property of an entity.
func Property(id string, kind types.PropertyKind, v types.Value) string {
	val := state.FormatValue(v)
	switch kind {
	case types.Emotional:
		return fmt.Sprintf("%s feels %s", Name(id), val)
	case types.Location:
		return fmt.Sprintf("%s is at %s", Name(id), Name(val))
	case types.Physical:
		return fmt.Sprintf("%s is %s", Name(id), val)
	case types.Temporal:
		return fmt.Sprintf("for %s it is %s", Name(id), val)
	case types.Quantitative:
		return fmt.Sprintf("%s counts %s", Name(id), val)
	case types.Categorical:
		return fmt.Sprintf("%s is a %s", Name(id), val)
	default:
		return fmt.Sprintf("%s has %s %s", Name(id), kind, val)
	}
}

// State describes every entity and relationship, one sentence each.
// Entities come in ID order and properties in canonical kind order.
func State(s *types.State) []string {
	var out []string
	for _, id := range state.EntityIDs(s) {
		e := s.Entities[id]
		line := fmt.Sprintf("%s (%s)", Name(id), e.Type)
		var props []string
		for _, k := range state.Kinds {
			if v, ok := e.Props[k]; ok {
				props = append(props, fmt.Sprintf("%s=%s", k, state.FormatValue(v)))
			}
		}
		if len(props) > 0 {
			line += ": " + strings.Join(props, ", ")
		}
		out = append(out, line)
	}
	for _, r := range s.Relationships {
		out = append(out, fmt.Sprintf("%s %s %s", Name(r.From), relation(r.Type), Name(r.To)))
	}
	return out
}

// Effect describes a single instantiated effect.
func Effect(eff types.Effect) string {
	switch eff.Type {
	case types.EffSetProperty:
		return Property(eff.Target, eff.Kind, eff.Value)
	case types.EffRemoveProperty:
		return fmt.Sprintf("%s loses %s", Name(eff.Target), eff.Kind)
	case types.EffAdjustQuantity:
		kind := eff.Kind
		if kind == "" {
			kind = types.Quantitative
		}
		verb := "gains"
		d := eff.Delta
		if d < 0 {
			verb, d = "loses", -d
		}
		return fmt.Sprintf("%s %s %s %s", Name(eff.Target), verb, state.FormatValue(state.Number(d)), kind)
	case types.EffAddRelationship:
		return fmt.Sprintf("%s now %s %s", Name(eff.Target), relation(eff.Relation), Name(eff.Object))
	case types.EffRemoveRelationship:
		return fmt.Sprintf("%s no longer %s %s", Name(eff.Target), relation(eff.Relation), Name(eff.Object))
	case types.EffCreateEntity:
		typ := eff.EntityType
		if typ == "" {
			typ = "thing"
		}
		return fmt.Sprintf("%s appears (%s)", Name(eff.Target), strings.ToLower(typ))
	default:
		return string(eff.Type)
	}
}

// Action describes what an action does, joining its effects.
func Action(a types.Action) string {
	parts := make([]string, 0, len(a.Effects))
	for _, eff := range a.Effects {
		parts = append(parts, Effect(eff))
	}
	if len(parts) == 0 {
		return a.RuleID
	}
	return strings.Join(parts, "; ")
}

// Path describes the chain of actions from the root to branch id.
// branches must be indexed by ID.
func Path(branches []types.Branch, id int) string {
	var steps []string
	for id >= 0 && id < len(branches) {
		b := branches[id]
		if b.Action != nil {
			steps = append(steps, Action(*b.Action))
		}
		id = b.Parent
	}
	if len(steps) == 0 {
		return "nothing changes"
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, ", then ")
}

// Rules returns the rule IDs applied on the way from the root to id.
func Rules(branches []types.Branch, id int) []string {
	var ids []string
	for id >= 0 && id < len(branches) {
		if a := branches[id].Action; a != nil {
			ids = append(ids, a.RuleID)
		}
		id = branches[id].Parent
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Outcome is a one-line summary of a branch for listings.
func Outcome(branches []types.Branch, id int) string {
	b := branches[id]
	return fmt.Sprintf("#%d depth %d  %.1f%%  %s", b.ID, b.Depth, b.Confidence*100, Path(branches, id))
}
