package rules

import (
	"testing"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

func testState() *types.State {
	s := state.New()
	state.AddEntity(s, "alice", "Person")
	state.AddEntity(s, "bob", "Person")
	state.AddEntity(s, "forest", "Location")
	state.AddEntity(s, "coins", "Object")
	state.SetProp(s, "alice", types.Emotional, state.Text("anxious"))
	state.SetProp(s, "alice", types.Location, state.Text("forest"))
	state.SetProp(s, "bob", types.Emotional, state.Text("calm"))
	state.SetProp(s, "coins", types.Quantitative, state.Number(3))
	state.AddRelationship(s, types.Relationship{From: "alice", Type: "LOCATED_IN", To: "forest", Strength: 1})
	state.AddRelationship(s, types.Relationship{From: "bob", Type: "HAS", To: "coins", Strength: 1})
	return s
}

func prop(subject string, kind types.PropertyKind, value string) types.Predicate {
	return types.Predicate{Type: types.PredProperty, Subject: subject, Kind: kind, Value: state.Text(value)}
}

func TestEval(t *testing.T) {
	s := testState()

	tests := []struct {
		name string
		pred types.Predicate
		want bool
	}{
		{"property literal", prop("alice", types.Emotional, "anxious"), true},
		{"property literal wrong value", prop("alice", types.Emotional, "happy"), false},
		{"property existential", prop("", types.Emotional, "calm"), true},
		{"property missing entity", prop("carol", types.Emotional, "calm"), false},
		{"quantity above", types.Predicate{Type: types.PredQuantityAbove, Subject: "coins", Value: state.Number(2)}, true},
		{"quantity above equal", types.Predicate{Type: types.PredQuantityAbove, Subject: "coins", Value: state.Number(3)}, false},
		{"quantity below", types.Predicate{Type: types.PredQuantityBelow, Subject: "coins", Value: state.Number(5)}, true},
		{"quantity on text", types.Predicate{Type: types.PredQuantityBelow, Subject: "alice", Kind: types.Emotional, Value: state.Number(5)}, false},
		{"relation literal", types.Predicate{Type: types.PredRelation, Subject: "alice", Relation: "LOCATED_IN", Object: "forest"}, true},
		{"relation any object", types.Predicate{Type: types.PredRelation, Subject: "bob", Relation: "HAS"}, true},
		{"relation absent", types.Predicate{Type: types.PredRelation, Subject: "alice", Relation: "HAS"}, false},
		{"entity type", types.Predicate{Type: types.PredEntityType, Subject: "forest", Value: state.Text("location")}, true},
		{"exists", types.Predicate{Type: types.PredExists, Subject: "bob"}, true},
		{"exists missing", types.Predicate{Type: types.PredExists, Subject: "carol"}, false},
		{"not", types.Predicate{Type: types.PredNot, Inner: []types.Predicate{prop("alice", types.Emotional, "happy")}}, true},
		{"not holds", types.Predicate{Type: types.PredNot, Inner: []types.Predicate{prop("alice", types.Emotional, "anxious")}}, false},
		{"all", types.Predicate{Type: types.PredAll, Inner: []types.Predicate{
			prop("", types.Emotional, "anxious"),
			prop("", types.Location, "forest"),
		}}, true},
		{"all different subjects", types.Predicate{Type: types.PredAll, Inner: []types.Predicate{
			prop("", types.Emotional, "calm"),
			prop("", types.Location, "forest"),
		}}, false},
		{"any", types.Predicate{Type: types.PredAny, Inner: []types.Predicate{
			prop("alice", types.Emotional, "happy"),
			prop("bob", types.Emotional, "calm"),
		}}, true},
		{"unknown type", types.Predicate{Type: "telepathy", Subject: "alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eval(tt.pred, s, nil); got != tt.want {
				t.Errorf("Eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_BindsVariables(t *testing.T) {
	s := testState()
	p := types.Predicate{Type: types.PredRelation, Subject: "?who", Relation: "HAS", Object: "?what"}

	got := Match(p, s, Bindings{})
	if len(got) != 1 {
		t.Fatalf("got %d bindings, want 1", len(got))
	}
	if got[0]["?who"] != "bob" || got[0]["?what"] != "coins" {
		t.Errorf("bindings = %v", got[0])
	}
}

func TestMatchAll_SharedVariable(t *testing.T) {
	s := testState()
	preds := []types.Predicate{
		prop("", types.Emotional, "anxious"),
		{Type: types.PredRelation, Relation: "LOCATED_IN", Object: "?place"},
	}
	got := MatchAll(preds, s, nil)
	if len(got) != 1 {
		t.Fatalf("got %d bindings, want 1", len(got))
	}
	if got[0]["?x"] != "alice" || got[0]["?place"] != "forest" {
		t.Errorf("bindings = %v", got[0])
	}
}

func TestMatchAll_EmptyConjunction(t *testing.T) {
	got := MatchAll(nil, testState(), Bindings{"?x": "alice"})
	if len(got) != 1 || got[0]["?x"] != "alice" {
		t.Errorf("empty conjunction = %v, want the input binding", got)
	}
}

func TestBindingsKey(t *testing.T) {
	b := Bindings{"?y": "b", "?x": "a"}
	if got := b.Key(); got != "?x=a,?y=b" {
		t.Errorf("Key = %q", got)
	}
}
