package rules

import (
	"context"
	"sort"
	"strings"

	"github.com/nathoo/simcore/types"
)

// Source supplies the rule set for a scenario. Implementations must not
// expect the engine to modify the returned rules.
type Source interface {
	Rules(ctx context.Context, scenario string) ([]types.Rule, error)
}

// Static is a fixed rule set.
type Static []types.Rule

// Rules returns the rules relevant to scenario (see ForScenario).
func (st Static) Rules(_ context.Context, scenario string) ([]types.Rule, error) {
	return ForScenario(st, scenario), nil
}

// ForScenario filters rules by tag. Untagged rules always apply; a tagged
// rule applies when any of its tags occurs as a word in the scenario text.
func ForScenario(rules []types.Rule, scenario string) []types.Rule {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(scenario), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	}) {
		words[w] = true
	}

	out := make([]types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(r.Tags) == 0 {
			out = append(out, r)
			continue
		}
		for _, tag := range r.Tags {
			if words[strings.ToLower(tag)] {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// RankActions orders actions by confidence (desc), then rule ID (asc),
// then binding. The first element is the highest-confidence action.
func RankActions(actions []types.Action) []types.Action {
	ranked := make([]types.Action, len(actions))
	copy(ranked, actions)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		if ranked[i].RuleID != ranked[j].RuleID {
			return ranked[i].RuleID < ranked[j].RuleID
		}
		return Bindings(ranked[i].Bindings).Key() < Bindings(ranked[j].Bindings).Key()
	})
	return ranked
}

// IDs returns the rule IDs of a rule set in sorted order.
func IDs(rules []types.Rule) []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}
