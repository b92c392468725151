package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// Known predicate types.
var validPredicateTypes = map[types.PredicateType]bool{
	types.PredProperty:      true,
	types.PredQuantityAbove: true,
	types.PredQuantityBelow: true,
	types.PredRelation:      true,
	types.PredEntityType:    true,
	types.PredExists:        true,
	types.PredNot:           true,
	types.PredAll:           true,
	types.PredAny:           true,
}

// Known effect types.
var validEffectTypes = map[types.EffectType]bool{
	types.EffSetProperty:        true,
	types.EffRemoveProperty:     true,
	types.EffAdjustQuantity:     true,
	types.EffAddRelationship:    true,
	types.EffRemoveRelationship: true,
	types.EffCreateEntity:       true,
}

// validate checks the compiled pack for consistency. Warnings are kept on
// the pack; errors fail the load.
func validate(p *Pack) error {
	ve := &ValidationError{}

	ruleIDs := map[string]bool{}
	for _, rule := range p.rules {
		if rule.ID == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("rule in %s has no ID", rule.Source))
			continue
		}
		if ruleIDs[rule.ID] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("duplicate rule ID %q", rule.ID))
		}
		ruleIDs[rule.ID] = true
		validateRule(rule, ve)
	}

	constraintIDs := map[string]bool{}
	for _, c := range p.constraints {
		if constraintIDs[c.ID] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("duplicate constraint ID %q", c.ID))
		}
		constraintIDs[c.ID] = true
		if c.Kind != types.Avoid && c.Kind != types.Achieve {
			ve.Errors = append(ve.Errors, fmt.Sprintf("constraint %q has unknown kind %q", c.ID, c.Kind))
		}
		if c.Weight < 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("constraint %q has negative weight", c.ID))
		}
		validatePredicate(fmt.Sprintf("constraint %q", c.ID), c.Target, ve)
	}

	for _, h := range p.hintList {
		if strings.TrimSpace(h.Name) == "" {
			ve.Errors = append(ve.Errors, "hint with empty name")
		}
	}

	p.Warnings = append(p.Warnings, ve.Warnings...)
	if len(ve.Errors) > 0 {
		ve.Warnings = p.Warnings
		return ve
	}
	return nil
}

func validateRule(rule types.Rule, ve *ValidationError) {
	where := fmt.Sprintf("rule %q", rule.ID)

	if rule.Confidence < 0 || rule.Confidence > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s confidence %v outside [0, 1]", where, rule.Confidence))
	} else if rule.Confidence == 0 {
		ve.Warnings = append(ve.Warnings, fmt.Sprintf("%s has zero confidence", where))
	}
	if len(rule.Pattern) == 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s has an empty pattern", where))
	}
	if len(rule.Outcome) == 0 {
		ve.Warnings = append(ve.Warnings, fmt.Sprintf("%s has no effects", where))
	}

	for _, p := range rule.Pattern {
		validatePredicate(where, p, ve)
	}

	bound := map[string]bool{}
	for _, p := range rule.Pattern {
		collectVars(p, bound)
	}
	for _, eff := range rule.Outcome {
		validateEffect(where, eff, bound, ve)
	}
}

func validatePredicate(where string, p types.Predicate, ve *ValidationError) {
	if !validPredicateTypes[p.Type] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown predicate type %q", where, p.Type))
		return
	}
	switch p.Type {
	case types.PredProperty:
		checkKind(where, p.Kind, true, ve)
	case types.PredQuantityAbove, types.PredQuantityBelow:
		checkKind(where, p.Kind, false, ve)
	case types.PredRelation:
		if p.Relation == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: relation predicate without a relation", where))
		}
	case types.PredEntityType:
		if p.Value.Text == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: entity type predicate without a type", where))
		}
	case types.PredNot, types.PredAll, types.PredAny:
		if len(p.Inner) == 0 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s predicate with nothing inside", where, p.Type))
		}
		for _, in := range p.Inner {
			validatePredicate(where, in, ve)
		}
	}
}

func validateEffect(where string, eff types.Effect, bound map[string]bool, ve *ValidationError) {
	if !validEffectTypes[eff.Type] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown effect type %q", where, eff.Type))
		return
	}
	switch eff.Type {
	case types.EffSetProperty, types.EffRemoveProperty:
		checkKind(where, eff.Kind, true, ve)
	case types.EffAdjustQuantity:
		checkKind(where, eff.Kind, false, ve)
	case types.EffAddRelationship, types.EffRemoveRelationship:
		if eff.Relation == "" || eff.Object == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s needs a relation and an object", where, eff.Type))
		}
	case types.EffCreateEntity:
		if eff.Target == "" || rules.IsVar(eff.Target) {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: create_entity needs a concrete ID", where))
		}
		return
	}

	target := eff.Target
	if target == "" {
		target = rules.DefaultVar
	}
	for _, term := range []string{target, eff.Object} {
		if term != "" && rules.IsVar(term) && !bound[term] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: effect uses unbound variable %q", where, term))
		}
	}
}

// checkKind reports unknown kinds; required kinds must also be present.
func checkKind(where string, kind types.PropertyKind, required bool, ve *ValidationError) {
	if kind == "" {
		if required {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: missing property kind", where))
		}
		return
	}
	if _, ok := state.ParseKind(string(kind)); !ok {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown property kind %q (want one of %s)", where, kind, kindNames()))
	}
}

// collectVars records variables bound by positive predicates. Variables
// under Not never bind, and Any binds only what every alternative binds.
func collectVars(p types.Predicate, bound map[string]bool) {
	switch p.Type {
	case types.PredNot:
		return
	case types.PredAll:
		for _, in := range p.Inner {
			collectVars(in, bound)
		}
		return
	case types.PredAny:
		var common map[string]bool
		for _, in := range p.Inner {
			vars := map[string]bool{}
			collectVars(in, vars)
			if common == nil {
				common = vars
				continue
			}
			for v := range common {
				if !vars[v] {
					delete(common, v)
				}
			}
		}
		for v := range common {
			bound[v] = true
		}
		return
	}
	bound[rules.Subject(p)] = true
	if p.Object != "" && rules.IsVar(p.Object) {
		bound[p.Object] = true
	}
}

func kindNames() string {
	names := make([]string, len(state.Kinds))
	for i, k := range state.Kinds {
		names[i] = string(k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
