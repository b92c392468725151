package rules

import (
	"sort"

	"github.com/nathoo/simcore/types"
)

// ApplicableRules returns one action per distinct binding of every rule
// whose pattern holds in s. Actions are ordered by rule ID, then binding.
// Rules are not modified.
func ApplicableRules(s *types.State, rules []types.Rule) []types.Action {
	ordered := make([]types.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	var actions []types.Action
	for _, rule := range ordered {
		found := MatchAll(rule.Pattern, s, Bindings{})
		seen := map[string]bool{}
		var distinct []Bindings
		for _, b := range found {
			k := b.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			distinct = append(distinct, b)
		}
		sort.Slice(distinct, func(i, j int) bool {
			return distinct[i].Key() < distinct[j].Key()
		})
		for _, b := range distinct {
			actions = append(actions, Instantiate(rule, b))
		}
	}
	return actions
}

// Instantiate substitutes b into a rule's pattern and outcome.
func Instantiate(rule types.Rule, b Bindings) types.Action {
	matched := make([]types.Predicate, len(rule.Pattern))
	for i, p := range rule.Pattern {
		matched[i] = substPredicate(p, b)
	}
	effs := make([]types.Effect, len(rule.Outcome))
	for i, e := range rule.Outcome {
		effs[i] = substEffect(e, b)
	}
	var bindings map[string]string
	if len(b) > 0 {
		bindings = make(map[string]string, len(b))
		for k, v := range b {
			bindings[k] = v
		}
	}
	return types.Action{
		RuleID:     rule.ID,
		Bindings:   bindings,
		Matched:    matched,
		Effects:    effs,
		Confidence: rule.Confidence,
	}
}

func subst(term string, b Bindings) string {
	if term == "" {
		term = DefaultVar
	}
	if IsVar(term) {
		if id, ok := b[term]; ok {
			return id
		}
	}
	return term
}

func substPredicate(p types.Predicate, b Bindings) types.Predicate {
	switch p.Type {
	case types.PredNot, types.PredAll, types.PredAny:
		inner := make([]types.Predicate, len(p.Inner))
		for i, in := range p.Inner {
			inner[i] = substPredicate(in, b)
		}
		p.Inner = inner
		return p
	}
	p.Subject = subst(p.Subject, b)
	if p.Object != "" {
		p.Object = subst(p.Object, b)
	}
	return p
}

func substEffect(e types.Effect, b Bindings) types.Effect {
	e.Target = subst(e.Target, b)
	if e.Object != "" {
		e.Object = subst(e.Object, b)
	}
	return e
}
