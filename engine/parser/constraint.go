package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// DefaultConstraintWeight applies when a directive names no weight.
const DefaultConstraintWeight = 0.5

// kindCall matches "Location(rain)" and "alice.Emotional(happy)".
var kindCall = regexp.MustCompile(`^(?:([A-Za-z0-9_]+)\.)?([A-Za-z]+)\(\s*([^)]*?)\s*\)$`)

var constraintFiller = set("a", "an", "the", "mood", "feeling", "being", "state", "of", "to", "be", "in", "at", "weather")

// ParseConstraint reads a directive such as "avoid Location(rain) 0.5",
// "reach happy mood" or "achieve alice.Emotional(calm) 0.3". The verb is
// avoid, achieve, reach or prefer; the target is either Kind(value) or
// plain words whose kind is inferred from the parser's lexicon.
func ParseConstraint(directive string) (types.Constraint, error) {
	fields := strings.Fields(directive)
	if len(fields) < 2 {
		return types.Constraint{}, fmt.Errorf("constraint %q: want <avoid|achieve> <target> [weight]", directive)
	}

	var c types.Constraint
	switch strings.ToLower(fields[0]) {
	case "avoid", "prevent":
		c.Kind = types.Avoid
	case "achieve", "reach", "prefer", "want":
		c.Kind = types.Achieve
	default:
		return types.Constraint{}, fmt.Errorf("constraint %q: unknown verb %q", directive, fields[0])
	}
	rest := fields[1:]

	c.Weight = DefaultConstraintWeight
	if w, err := strconv.ParseFloat(rest[len(rest)-1], 64); err == nil && len(rest) > 1 {
		if w < 0 {
			return types.Constraint{}, fmt.Errorf("constraint %q: negative weight", directive)
		}
		c.Weight = w
		rest = rest[:len(rest)-1]
	}

	target := strings.Join(rest, " ")
	if m := kindCall.FindStringSubmatch(target); m != nil {
		kind, ok := state.ParseKind(m[2])
		if !ok {
			return types.Constraint{}, fmt.Errorf("constraint %q: unknown property kind %q", directive, m[2])
		}
		c.Target = types.Predicate{Type: types.PredProperty, Subject: m[1], Kind: kind, Value: valueOf(m[3])}
		c.ID = fmt.Sprintf("%s_%s", c.Kind, resolve.ID(m[3]))
		return c, nil
	}

	var words []string
	for _, w := range rest {
		w = strings.ToLower(w)
		if !constraintFiller[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return types.Constraint{}, fmt.Errorf("constraint %q: no target", directive)
	}
	value := words[0]
	pred, ok := inferTarget(value)
	if !ok {
		return types.Constraint{}, fmt.Errorf("constraint %q: cannot tell what %q describes; use Kind(value)", directive, value)
	}
	c.Target = pred
	c.ID = fmt.Sprintf("%s_%s", c.Kind, resolve.ID(strings.Join(words, " ")))
	return c, nil
}

// inferTarget builds a predicate for a bare word. Weather matches either
// a location or a physical condition, since the parser records both.
func inferTarget(w string) (types.Predicate, bool) {
	prop := func(kind types.PropertyKind, v string) types.Predicate {
		return types.Predicate{Type: types.PredProperty, Kind: kind, Value: state.Text(v)}
	}
	switch {
	case emotions[w]:
		return prop(types.Emotional, w), true
	case emotionNouns[w] != "":
		return prop(types.Emotional, emotionNouns[w]), true
	case weather[w] != "":
		c := weather[w]
		return types.Predicate{Type: types.PredAny, Inner: []types.Predicate{
			prop(types.Location, c),
			prop(types.Physical, c),
		}}, true
	case timeWords[w]:
		return prop(types.Temporal, w), true
	case physicalAdjectives[w]:
		return prop(types.Physical, w), true
	}
	if t, ok := nounTypes[w]; ok && t == "Location" {
		return prop(types.Location, w), true
	}
	return types.Predicate{}, false
}

func valueOf(s string) types.Value {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return state.Number(n)
	}
	return state.Text(strings.ToLower(s))
}
