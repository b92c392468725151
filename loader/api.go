package loader

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerPredicateHelpers(L)
	registerEffectHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Pack { name = "...", description = "..." }
	L.SetGlobal("Pack", L.NewFunction(func(L *lua.LState) int {
		coll.meta = L.CheckTable(1)
		return 0
	}))

	// Rule("id", When{...}, Then{...}, confidence [, {tags}])
	L.SetGlobal("Rule", L.NewFunction(func(L *lua.LState) int {
		coll.rules = append(coll.rules, rawRule{
			id:         L.CheckString(1),
			when:       L.CheckTable(2),
			then:       L.CheckTable(3),
			confidence: float64(L.CheckNumber(4)),
			tags:       L.OptTable(5, nil),
			file:       coll.file,
			order:      coll.nextSourceOrder(),
		})
		return 0
	}))

	// When { pred, ... } and Then { effect, ... } are pass-throughs.
	L.SetGlobal("When", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))
	L.SetGlobal("Then", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))

	// Hint "Name" { type = "...", aliases = {...}, pronouns = {...}, <kind> = value }
	// Curried: Hint("Name") returns a function that takes a table.
	L.SetGlobal("Hint", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.hints = append(coll.hints, rawHint{name: name, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Avoid(pred, weight [, "id"]) and Achieve(pred, weight [, "id"]) add
	// default constraints to the pack.
	for _, kind := range []types.ConstraintKind{types.Avoid, types.Achieve} {
		kind := kind
		L.SetGlobal(title(string(kind)), L.NewFunction(func(L *lua.LState) int {
			coll.constraints = append(coll.constraints, rawConstraint{
				kind:   kind,
				target: L.CheckTable(1),
				weight: float64(L.CheckNumber(2)),
				id:     L.OptString(3, ""),
			})
			return 0
		}))
	}
}

func registerPredicateHelpers(L *lua.LState) {
	// Emotional("afraid" [, "?x"]), Location(...), ... one per property kind.
	for _, kind := range state.Kinds {
		kind := kind
		L.SetGlobal(title(string(kind)), L.NewFunction(func(L *lua.LState) int {
			L.Push(propertyTable(L, string(kind), L.CheckAny(1), L.OptString(2, "")))
			return 1
		}))
	}

	// Prop("kind", value [, "?x"])
	L.SetGlobal("Prop", L.NewFunction(func(L *lua.LState) int {
		L.Push(propertyTable(L, L.CheckString(1), L.CheckAny(2), L.OptString(3, "")))
		return 1
	}))

	// QuantityAbove(n [, "?x" [, "kind"]]) and QuantityBelow(...)
	for name, typ := range map[string]types.PredicateType{
		"QuantityAbove": types.PredQuantityAbove,
		"QuantityBelow": types.PredQuantityBelow,
	} {
		typ := typ
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("type", lua.LString(typ))
			tbl.RawSetString("value", L.CheckNumber(1))
			setOpt(tbl, "subject", L.OptString(2, ""))
			setOpt(tbl, "kind", L.OptString(3, ""))
			L.Push(tbl)
			return 1
		}))
	}

	// Related("?x", "FEARS" [, "?y"])
	L.SetGlobal("Related", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.PredRelation))
		tbl.RawSetString("subject", lua.LString(L.CheckString(1)))
		tbl.RawSetString("relation", lua.LString(L.CheckString(2)))
		setOpt(tbl, "object", L.OptString(3, ""))
		L.Push(tbl)
		return 1
	}))

	// IsType("Person" [, "?x"])
	L.SetGlobal("IsType", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.PredEntityType))
		tbl.RawSetString("value", lua.LString(L.CheckString(1)))
		setOpt(tbl, "subject", L.OptString(2, ""))
		L.Push(tbl)
		return 1
	}))

	// Exists("?y")
	L.SetGlobal("Exists", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.PredExists))
		tbl.RawSetString("subject", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// Not(pred), All{pred, ...}, Any{pred, ...}
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		inner := L.NewTable()
		inner.Append(L.CheckTable(1))
		L.Push(groupTable(L, types.PredNot, inner))
		return 1
	}))
	L.SetGlobal("All", L.NewFunction(func(L *lua.LState) int {
		L.Push(groupTable(L, types.PredAll, L.CheckTable(1)))
		return 1
	}))
	L.SetGlobal("Any", L.NewFunction(func(L *lua.LState) int {
		L.Push(groupTable(L, types.PredAny, L.CheckTable(1)))
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Set("kind", value [, "?x"])
	L.SetGlobal("Set", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffSetProperty))
		tbl.RawSetString("kind", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckAny(2))
		setOpt(tbl, "target", L.OptString(3, ""))
		L.Push(tbl)
		return 1
	}))

	// Unset("kind" [, "?x"])
	L.SetGlobal("Unset", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffRemoveProperty))
		tbl.RawSetString("kind", lua.LString(L.CheckString(1)))
		setOpt(tbl, "target", L.OptString(2, ""))
		L.Push(tbl)
		return 1
	}))

	// Adjust(delta [, "?x" [, "kind"]])
	L.SetGlobal("Adjust", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffAdjustQuantity))
		tbl.RawSetString("delta", L.CheckNumber(1))
		setOpt(tbl, "target", L.OptString(2, ""))
		setOpt(tbl, "kind", L.OptString(3, ""))
		L.Push(tbl)
		return 1
	}))

	// Relate("?x", "RUNS_FROM", "?y" [, strength])
	L.SetGlobal("Relate", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffAddRelationship))
		tbl.RawSetString("target", lua.LString(L.CheckString(1)))
		tbl.RawSetString("relation", lua.LString(L.CheckString(2)))
		tbl.RawSetString("object", lua.LString(L.CheckString(3)))
		tbl.RawSetString("strength", L.OptNumber(4, 1))
		L.Push(tbl)
		return 1
	}))

	// Unrelate("?x", "NEAR", "?y")
	L.SetGlobal("Unrelate", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffRemoveRelationship))
		tbl.RawSetString("target", lua.LString(L.CheckString(1)))
		tbl.RawSetString("relation", lua.LString(L.CheckString(2)))
		tbl.RawSetString("object", lua.LString(L.CheckString(3)))
		L.Push(tbl)
		return 1
	}))

	// Create("wolf", "Animal")
	L.SetGlobal("Create", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(types.EffCreateEntity))
		tbl.RawSetString("target", lua.LString(L.CheckString(1)))
		tbl.RawSetString("entity_type", lua.LString(L.CheckString(2)))
		L.Push(tbl)
		return 1
	}))
}

func propertyTable(L *lua.LState, kind string, value lua.LValue, subject string) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(types.PredProperty))
	tbl.RawSetString("kind", lua.LString(kind))
	tbl.RawSetString("value", value)
	setOpt(tbl, "subject", subject)
	return tbl
}

func groupTable(L *lua.LState, typ types.PredicateType, inner *lua.LTable) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(typ))
	tbl.RawSetString("inner", inner)
	return tbl
}

// setOpt sets key only when s is non-empty.
func setOpt(tbl *lua.LTable, key, s string) {
	if s != "" {
		tbl.RawSetString(key, lua.LString(s))
	}
}

// title turns "emotional" into "Emotional".
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
