// Package transition turns a state and its applicable actions into
// successor states according to a resolution policy.
package transition

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/simcore/engine/effects"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// ConflictUnresolved is the TransitionError code for an unsupported policy.
const ConflictUnresolved = "conflict_unresolved"

var ErrConflictUnresolved = errors.New("conflict cannot be resolved")

// TransitionError reports that actions could not be resolved.
type TransitionError struct {
	Code   string
	Policy types.Policy
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("unsupported resolution policy %q", e.Policy)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrConflictUnresolved && e.Code == ConflictUnresolved
}

// Successor is one candidate child state and the edge that produced it.
type Successor struct {
	State   *types.State
	Action  types.Action
	Changed bool // false when the successor equals its parent
}

// CheckPolicy returns a *TransitionError if p is not a supported policy.
func CheckPolicy(p types.Policy) error {
	switch p {
	case types.AllBranches, types.HighestConfidence, types.Merge:
		return nil
	default:
		return &TransitionError{Code: ConflictUnresolved, Policy: p}
	}
}

// Apply produces successors of s for actions under policy. s is never
// modified. The result is deterministic for a given state, action set
// and policy.
func Apply(s *types.State, actions []types.Action, policy types.Policy) ([]Successor, error) {
	if err := CheckPolicy(policy); err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}

	parent := state.Fingerprint(s)

	switch policy {
	case types.AllBranches:
		ordered := byRuleID(actions)
		out := make([]Successor, 0, len(ordered))
		for _, a := range ordered {
			out = append(out, successor(s, parent, a, a.Effects))
		}
		return out, nil

	case types.HighestConfidence:
		best := rules.RankActions(actions)[0]
		return []Successor{successor(s, parent, best, best.Effects)}, nil

	default:
		a, effs := merge(actions)
		return []Successor{successor(s, parent, a, effs)}, nil
	}
}

func successor(s *types.State, parentPrint string, a types.Action, effs []types.Effect) Successor {
	child := state.Clone(s)
	child.Step = s.Step + 1
	effects.Apply(child, effs)
	return Successor{
		State:   child,
		Action:  a,
		Changed: state.Fingerprint(child) != parentPrint,
	}
}

func byRuleID(actions []types.Action) []types.Action {
	ordered := make([]types.Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RuleID != ordered[j].RuleID {
			return ordered[i].RuleID < ordered[j].RuleID
		}
		return rules.Bindings(ordered[i].Bindings).Key() < rules.Bindings(ordered[j].Bindings).Key()
	})
	return ordered
}

// merge folds all actions into one. Effects on disjoint targets are all
// kept; when two actions write the same target, the higher-ranked action
// (confidence, then rule ID) keeps it. Entity creations run first so an
// action can write to an entity another action creates; every other
// write keeps its action's order. The merged edge carries the highest
// contributing confidence.
func merge(actions []types.Action) (types.Action, []types.Effect) {
	ranked := rules.RankActions(actions)

	owner := map[string]int{}
	var creates, writes []types.Effect
	var ids []string
	var matched []types.Predicate
	contributed := map[int]bool{}

	for i, a := range ranked {
		for _, eff := range a.Effects {
			for _, part := range effects.Split(eff) {
				key := effects.TargetKey(part)
				if o, ok := owner[key]; ok && o != i {
					continue
				}
				owner[key] = i
				contributed[i] = true
				if part.Type == types.EffCreateEntity {
					creates = append(creates, part)
				} else {
					writes = append(writes, part)
				}
			}
		}
	}

	conf := 0.0
	for i, a := range ranked {
		if !contributed[i] {
			continue
		}
		ids = append(ids, a.RuleID)
		matched = append(matched, a.Matched...)
		if a.Confidence > conf {
			conf = a.Confidence
		}
	}
	if len(ids) == 0 {
		ids = append(ids, ranked[0].RuleID)
		conf = ranked[0].Confidence
	}

	effs := append(creates, writes...)
	return types.Action{
		RuleID:     strings.Join(ids, "+"),
		Matched:    matched,
		Effects:    effs,
		Confidence: conf,
	}, effs
}
