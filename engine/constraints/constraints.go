// Package constraints evaluates caller-supplied goals and avoidances
// against a state.
package constraints

import (
	"sort"

	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/types"
)

// Evaluation lists constraint IDs by outcome, sorted.
type Evaluation struct {
	Satisfied []string // achieve constraints whose target holds
	Violated  []string // avoid constraints whose target holds
}

// Evaluate checks every constraint against s. Each call is independent of
// any previous evaluation.
func Evaluate(s *types.State, cs []types.Constraint) Evaluation {
	var ev Evaluation
	for _, c := range cs {
		if !rules.Eval(c.Target, s, nil) {
			continue
		}
		switch c.Kind {
		case types.Achieve:
			ev.Satisfied = append(ev.Satisfied, c.ID)
		case types.Avoid:
			ev.Violated = append(ev.Violated, c.ID)
		}
	}
	sort.Strings(ev.Satisfied)
	sort.Strings(ev.Violated)
	return ev
}

// Bonus returns the sum of satisfied achieve weights minus the sum of
// violated avoid weights.
func Bonus(cs []types.Constraint, ev Evaluation) float64 {
	hit := map[string]bool{}
	for _, id := range ev.Satisfied {
		hit[id] = true
	}
	for _, id := range ev.Violated {
		hit[id] = true
	}
	bonus := 0.0
	for _, c := range cs {
		if !hit[c.ID] {
			continue
		}
		switch c.Kind {
		case types.Achieve:
			bonus += c.Weight
		case types.Avoid:
			bonus -= c.Weight
		}
	}
	return bonus
}
