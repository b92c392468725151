package effects

import (
	"testing"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

func testState() *types.State {
	s := state.New()
	state.AddEntity(s, "alice", "Person")
	state.AddEntity(s, "forest", "Location")
	state.SetProp(s, "alice", types.Emotional, state.Text("anxious"))
	return s
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		effs    []types.Effect
		changed bool
		check   func(t *testing.T, s *types.State)
	}{
		{
			name:    "set property",
			effs:    []types.Effect{{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional, Value: state.Text("afraid")}},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				if v, _ := state.GetProp(s, "alice", types.Emotional); v.Text != "afraid" {
					t.Errorf("emotional = %q, want afraid", v.Text)
				}
			},
		},
		{
			name:    "set same value",
			effs:    []types.Effect{{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional, Value: state.Text("anxious")}},
			changed: false,
		},
		{
			name:    "remove property",
			effs:    []types.Effect{{Type: types.EffRemoveProperty, Target: "alice", Kind: types.Emotional}},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				if _, ok := state.GetProp(s, "alice", types.Emotional); ok {
					t.Error("emotional should be removed")
				}
			},
		},
		{
			name: "adjust quantity from zero",
			effs: []types.Effect{
				{Type: types.EffAdjustQuantity, Target: "alice", Delta: 2},
				{Type: types.EffAdjustQuantity, Target: "alice", Delta: -0.5},
			},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				v, _ := state.GetProp(s, "alice", types.Quantitative)
				if !v.Numeric || v.Number != 1.5 {
					t.Errorf("quantity = %+v, want 1.5", v)
				}
			},
		},
		{
			name:    "add relationship default strength",
			effs:    []types.Effect{{Type: types.EffAddRelationship, Target: "alice", Relation: "FLEES", Object: "forest"}},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				if len(s.Relationships) != 1 || s.Relationships[0].Strength != 1 {
					t.Errorf("relationships = %+v", s.Relationships)
				}
			},
		},
		{
			name: "create entity with property",
			effs: []types.Effect{
				{Type: types.EffCreateEntity, Target: "wolf", EntityType: "Animal", Kind: types.Emotional, Value: state.Text("hungry")},
			},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				if s.Entities["wolf"].Type != "Animal" {
					t.Errorf("wolf type = %q", s.Entities["wolf"].Type)
				}
				if v, _ := state.GetProp(s, "wolf", types.Emotional); v.Text != "hungry" {
					t.Errorf("wolf emotional = %q", v.Text)
				}
			},
		},
		{
			name:    "unbound target skipped",
			effs:    []types.Effect{{Type: types.EffSetProperty, Target: "?y", Kind: types.Emotional, Value: state.Text("x")}},
			changed: false,
		},
		{
			name: "last write wins",
			effs: []types.Effect{
				{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional, Value: state.Text("calm")},
				{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional, Value: state.Text("happy")},
			},
			changed: true,
			check: func(t *testing.T, s *types.State) {
				if v, _ := state.GetProp(s, "alice", types.Emotional); v.Text != "happy" {
					t.Errorf("emotional = %q, want happy", v.Text)
				}
			},
		},
		{
			name:    "unknown effect",
			effs:    []types.Effect{{Type: "teleport", Target: "alice"}},
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testState()
			if got := Apply(s, tt.effs); got != tt.changed {
				t.Errorf("changed = %v, want %v", got, tt.changed)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestTargetKey(t *testing.T) {
	tests := []struct {
		eff  types.Effect
		want string
	}{
		{types.Effect{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional}, "alice/emotional"},
		{types.Effect{Type: types.EffRemoveProperty, Target: "alice", Kind: types.Emotional}, "alice/emotional"},
		{types.Effect{Type: types.EffAdjustQuantity, Target: "coins"}, "coins/quantitative"},
		{types.Effect{Type: types.EffAddRelationship, Target: "a", Relation: "NEAR", Object: "b"}, "a-NEAR->b"},
		{types.Effect{Type: types.EffRemoveRelationship, Target: "a", Relation: "NEAR", Object: "b"}, "a-NEAR->b"},
		{types.Effect{Type: types.EffCreateEntity, Target: "storm", EntityType: "Weather"}, "storm/"},
	}
	for _, tt := range tests {
		if got := TargetKey(tt.eff); got != tt.want {
			t.Errorf("TargetKey(%+v) = %q, want %q", tt.eff, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	set := types.Effect{Type: types.EffSetProperty, Target: "alice", Kind: types.Emotional, Value: state.Text("calm")}
	if got := Split(set); len(got) != 1 || got[0] != set {
		t.Errorf("Split(set) = %+v, want it unchanged", got)
	}

	bare := types.Effect{Type: types.EffCreateEntity, Target: "storm", EntityType: "Weather"}
	if got := Split(bare); len(got) != 1 || got[0] != bare {
		t.Errorf("Split(bare create) = %+v, want it unchanged", got)
	}

	full := types.Effect{Type: types.EffCreateEntity, Target: "storm", EntityType: "Weather", Kind: types.Physical, Value: state.Text("heavy")}
	got := Split(full)
	if len(got) != 2 {
		t.Fatalf("Split(create with property) = %+v, want 2 effects", got)
	}
	if got[0] != bare {
		t.Errorf("creation = %+v, want %+v", got[0], bare)
	}
	want := types.Effect{Type: types.EffSetProperty, Target: "storm", Kind: types.Physical, Value: state.Text("heavy")}
	if got[1] != want {
		t.Errorf("property write = %+v, want %+v", got[1], want)
	}
	if TargetKey(got[1]) != "storm/physical" {
		t.Errorf("property key = %q, want storm/physical", TargetKey(got[1]))
	}

	s := state.New()
	state.AddEntity(s, "storm", "Weather")
	state.SetProp(s, "storm", types.Physical, state.Text("light"))
	split := state.Clone(s)
	Apply(s, []types.Effect{full})
	Apply(split, got)
	if state.Fingerprint(s) != state.Fingerprint(split) {
		t.Error("split effects should apply the same as the original")
	}
}
