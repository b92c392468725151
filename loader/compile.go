package loader

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// rawRule holds a rule before compilation.
type rawRule struct {
	id         string
	when       *lua.LTable
	then       *lua.LTable
	confidence float64
	tags       *lua.LTable // may be nil
	file       string
	order      int
}

// rawHint holds a hint table before compilation.
type rawHint struct {
	name  string
	table *lua.LTable
}

// rawConstraint holds a pack constraint before compilation.
type rawConstraint struct {
	id     string
	kind   types.ConstraintKind
	target *lua.LTable
	weight float64
}

// hintFields are the non-property keys of a Hint table.
var hintFields = map[string]bool{"id": true, "type": true, "aliases": true, "pronouns": true}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// stringList converts an array table of strings. Non-strings are skipped.
func stringList(tbl *lua.LTable) []string {
	if tbl == nil {
		return nil
	}
	var out []string
	for i := 1; i <= tbl.MaxN(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// tableList returns the array part of tbl, failing on non-table elements.
func tableList(tbl *lua.LTable, what string) ([]*lua.LTable, error) {
	var out []*lua.LTable
	for i := 1; i <= tbl.MaxN(); i++ {
		t, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %s, not a table", what, i, tbl.RawGetInt(i).Type())
		}
		out = append(out, t)
	}
	return out, nil
}

// luaValue converts a Lua scalar to a property value. Text is lowercased
// to match what the parser produces.
func luaValue(v lua.LValue) types.Value {
	switch val := v.(type) {
	case lua.LNumber:
		return state.Number(float64(val))
	case lua.LString:
		return state.Text(strings.ToLower(string(val)))
	case lua.LBool:
		return state.Text(val.String())
	default:
		return types.Value{}
	}
}

// kindOf keeps unknown kinds verbatim so validation can report them.
func kindOf(s string) types.PropertyKind {
	if s == "" {
		return ""
	}
	if k, ok := state.ParseKind(s); ok {
		return k
	}
	return types.PropertyKind(s)
}

// compile converts all collected Lua and YAML data into a Pack.
func compile(coll *collector, docs []yamlPack) (*Pack, error) {
	p := &Pack{hints: resolve.Hints{}}

	if coll.meta != nil {
		p.Name = getString(coll.meta, "name")
		p.Description = getString(coll.meta, "description")
	}

	sort.SliceStable(coll.rules, func(i, j int) bool {
		return coll.rules[i].order < coll.rules[j].order
	})
	for _, raw := range coll.rules {
		rule, err := compileRule(raw)
		if err != nil {
			return nil, err
		}
		p.rules = append(p.rules, rule)
	}
	for _, raw := range coll.hints {
		h, warnings := compileHint(raw)
		p.addHint(h)
		p.Warnings = append(p.Warnings, warnings...)
	}
	for _, raw := range coll.constraints {
		target, err := compilePredicate(raw.target)
		if err != nil {
			return nil, fmt.Errorf("%s constraint: %w", raw.kind, err)
		}
		p.constraints = append(p.constraints, newConstraint(raw.id, raw.kind, target, raw.weight))
	}

	for _, doc := range docs {
		if p.Name == "" {
			p.Name = doc.Name
		}
		if p.Description == "" {
			p.Description = doc.Description
		}
		if err := doc.compileInto(p); err != nil {
			return nil, fmt.Errorf("%s: %w", doc.file, err)
		}
	}
	return p, nil
}

func compileRule(raw rawRule) (types.Rule, error) {
	rule := types.Rule{
		ID:         raw.id,
		Confidence: raw.confidence,
		Tags:       stringList(raw.tags),
		Source:     raw.file,
	}

	when, err := tableList(raw.when, "when")
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule %q: %w", raw.id, err)
	}
	for _, tbl := range when {
		pred, err := compilePredicate(tbl)
		if err != nil {
			return types.Rule{}, fmt.Errorf("rule %q: %w", raw.id, err)
		}
		rule.Pattern = append(rule.Pattern, pred)
	}

	then, err := tableList(raw.then, "then")
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule %q: %w", raw.id, err)
	}
	for _, tbl := range then {
		rule.Outcome = append(rule.Outcome, compileEffect(tbl))
	}
	return rule, nil
}

func compilePredicate(tbl *lua.LTable) (types.Predicate, error) {
	pred := types.Predicate{
		Type:     types.PredicateType(getString(tbl, "type")),
		Subject:  getString(tbl, "subject"),
		Kind:     kindOf(getString(tbl, "kind")),
		Value:    luaValue(tbl.RawGetString("value")),
		Relation: getString(tbl, "relation"),
		Object:   getString(tbl, "object"),
	}
	if inner := getTable(tbl, "inner"); inner != nil {
		tbls, err := tableList(inner, string(pred.Type))
		if err != nil {
			return types.Predicate{}, err
		}
		for _, t := range tbls {
			p, err := compilePredicate(t)
			if err != nil {
				return types.Predicate{}, err
			}
			pred.Inner = append(pred.Inner, p)
		}
	}
	return pred, nil
}

func compileEffect(tbl *lua.LTable) types.Effect {
	return types.Effect{
		Type:       types.EffectType(getString(tbl, "type")),
		Target:     getString(tbl, "target"),
		Kind:       kindOf(getString(tbl, "kind")),
		Value:      luaValue(tbl.RawGetString("value")),
		Delta:      getNumber(tbl, "delta"),
		Relation:   getString(tbl, "relation"),
		Object:     getString(tbl, "object"),
		Strength:   getNumber(tbl, "strength"),
		EntityType: getString(tbl, "entity_type"),
	}
}

// compileHint reads a Hint table. Keys that are neither hint fields nor
// property kinds produce warnings.
func compileHint(raw rawHint) (types.EntityHint, []string) {
	h := types.EntityHint{
		Name:     raw.name,
		ID:       getString(raw.table, "id"),
		Type:     getString(raw.table, "type"),
		Aliases:  stringList(getTable(raw.table, "aliases")),
		Pronouns: stringList(getTable(raw.table, "pronouns")),
	}
	var warnings []string
	raw.table.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || hintFields[string(key)] {
			return
		}
		kind, ok := state.ParseKind(string(key))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("hint %q: unknown field %q", raw.name, key))
			return
		}
		if h.Props == nil {
			h.Props = map[types.PropertyKind]types.Value{}
		}
		h.Props[kind] = luaValue(v)
	})
	sort.Strings(warnings)
	return h, warnings
}

// newConstraint fills in a default ID derived from the target value.
func newConstraint(id string, kind types.ConstraintKind, target types.Predicate, weight float64) types.Constraint {
	if id == "" {
		slug := resolve.ID(state.FormatValue(target.Value))
		if slug == "" {
			slug = string(target.Type)
		}
		id = fmt.Sprintf("%s_%s", kind, slug)
	}
	return types.Constraint{ID: id, Kind: kind, Target: target, Weight: weight}
}
