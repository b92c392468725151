package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

var checker = validator.New()

// yamlPack is the document shape of a .yaml rule pack.
type yamlPack struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Rules       []yamlRule       `yaml:"rules" validate:"dive"`
	Hints       []yamlHint       `yaml:"hints" validate:"dive"`
	Constraints []yamlConstraint `yaml:"constraints" validate:"dive"`

	file string
}

type yamlRule struct {
	ID         string          `yaml:"id" validate:"required"`
	Confidence float64         `yaml:"confidence"`
	Tags       []string        `yaml:"tags"`
	When       []yamlPredicate `yaml:"when" validate:"dive"`
	Then       []yamlEffect    `yaml:"then" validate:"dive"`
}

type yamlPredicate struct {
	Type     string          `yaml:"type" validate:"required"`
	Subject  string          `yaml:"subject"`
	Kind     string          `yaml:"kind"`
	Value    any             `yaml:"value"`
	Relation string          `yaml:"relation"`
	Object   string          `yaml:"object"`
	Inner    []yamlPredicate `yaml:"inner" validate:"dive"`
}

type yamlEffect struct {
	Type       string   `yaml:"type" validate:"required"`
	Target     string   `yaml:"target"`
	Kind       string   `yaml:"kind"`
	Value      any      `yaml:"value"`
	Delta      float64  `yaml:"delta"`
	Relation   string   `yaml:"relation"`
	Object     string   `yaml:"object"`
	Strength   *float64 `yaml:"strength"`
	EntityType string   `yaml:"entity_type"`
}

type yamlHint struct {
	Name     string         `yaml:"name" validate:"required"`
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Aliases  []string       `yaml:"aliases"`
	Pronouns []string       `yaml:"pronouns"`
	Props    map[string]any `yaml:"props"`
}

type yamlConstraint struct {
	ID     string        `yaml:"id"`
	Kind   string        `yaml:"kind" validate:"required,oneof=avoid achieve"`
	Target yamlPredicate `yaml:"target"`
	Weight float64       `yaml:"weight" validate:"gte=0"`
}

// decodeYAML parses a pack document, rejecting unknown fields, and runs
// struct validation. An empty document is an empty pack.
func decodeYAML(src []byte) (yamlPack, error) {
	var doc yamlPack
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return yamlPack{}, err
	}

	if err := checker.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return yamlPack{}, err
		}
		ve := &ValidationError{}
		for _, fe := range verrs {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: failed %q check", strings.TrimPrefix(fe.Namespace(), "yamlPack."), fe.Tag()))
		}
		return yamlPack{}, ve
	}
	return doc, nil
}

// compileInto appends the document's definitions to p.
func (doc yamlPack) compileInto(p *Pack) error {
	for _, r := range doc.Rules {
		rule := types.Rule{
			ID:         r.ID,
			Confidence: r.Confidence,
			Tags:       r.Tags,
			Source:     doc.file,
		}
		for _, w := range r.When {
			rule.Pattern = append(rule.Pattern, w.predicate())
		}
		for _, t := range r.Then {
			rule.Outcome = append(rule.Outcome, t.effect())
		}
		p.rules = append(p.rules, rule)
	}

	for _, yh := range doc.Hints {
		h := types.EntityHint{
			Name:     yh.Name,
			ID:       yh.ID,
			Type:     yh.Type,
			Aliases:  yh.Aliases,
			Pronouns: yh.Pronouns,
		}
		for key, v := range yh.Props {
			kind, ok := state.ParseKind(key)
			if !ok {
				return fmt.Errorf("hint %q: unknown property kind %q", yh.Name, key)
			}
			if h.Props == nil {
				h.Props = map[types.PropertyKind]types.Value{}
			}
			h.Props[kind] = anyValue(v)
		}
		p.addHint(h)
	}

	for _, c := range doc.Constraints {
		p.constraints = append(p.constraints, newConstraint(c.ID, types.ConstraintKind(c.Kind), c.Target.predicate(), c.Weight))
	}
	return nil
}

func (y yamlPredicate) predicate() types.Predicate {
	p := types.Predicate{
		Type:     types.PredicateType(y.Type),
		Subject:  y.Subject,
		Kind:     kindOf(y.Kind),
		Value:    anyValue(y.Value),
		Relation: y.Relation,
		Object:   y.Object,
	}
	for _, in := range y.Inner {
		p.Inner = append(p.Inner, in.predicate())
	}
	return p
}

func (y yamlEffect) effect() types.Effect {
	e := types.Effect{
		Type:       types.EffectType(y.Type),
		Target:     y.Target,
		Kind:       kindOf(y.Kind),
		Value:      anyValue(y.Value),
		Delta:      y.Delta,
		Relation:   y.Relation,
		Object:     y.Object,
		EntityType: y.EntityType,
	}
	switch {
	case y.Strength != nil:
		e.Strength = *y.Strength
	case e.Type == types.EffAddRelationship:
		e.Strength = 1
	}
	return e
}

// anyValue converts a decoded YAML scalar the same way luaValue does.
func anyValue(v any) types.Value {
	switch val := v.(type) {
	case int:
		return state.Number(float64(val))
	case float64:
		return state.Number(val)
	case string:
		return state.Text(strings.ToLower(val))
	case bool:
		return state.Text(fmt.Sprint(val))
	default:
		return types.Value{}
	}
}
