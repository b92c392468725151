package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/simcore/engine/events"
	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/prune"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/engine/transition"
	"github.com/nathoo/simcore/types"
)

const forestText = "Alice walks into a dark forest feeling anxious"

func is(kind types.PropertyKind, v string) types.Predicate {
	return types.Predicate{Type: types.PredProperty, Kind: kind, Value: state.Text(v)}
}

func becomes(kind types.PropertyKind, v string) types.Effect {
	return types.Effect{Type: types.EffSetProperty, Target: "?x", Kind: kind, Value: state.Text(v)}
}

func rule(id string, conf float64, when []types.Predicate, then ...types.Effect) types.Rule {
	return types.Rule{ID: id, Pattern: when, Outcome: then, Confidence: conf}
}

var fearRule = rule("fear_grows", 0.8,
	[]types.Predicate{is(types.Emotional, "anxious"), is(types.Location, "forest")},
	becomes(types.Emotional, "afraid"))

// branching yields two children of an anxious Alice and grandchildren
// from each.
func branching() rules.Static {
	return rules.Static{
		rule("calm_down", 0.7, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Emotional, "calm")),
		rule("get_afraid", 0.8, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Emotional, "afraid")),
		rule("flee", 0.9, []types.Predicate{is(types.Emotional, "afraid")}, becomes(types.Location, "road")),
		rule("rest", 0.6, []types.Predicate{is(types.Emotional, "calm")}, becomes(types.Physical, "tired")),
	}
}

func anxious() *types.State {
	s := state.New()
	state.AddEntity(s, "alice", "Person")
	state.SetProp(s, "alice", types.Emotional, state.Text("anxious"))
	return s
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRun_ForestScenario(t *testing.T) {
	e := New(rules.Static{fearRule})
	res, err := e.Run(context.Background(), forestText, nil, types.Config{MaxDepth: 2, DecayRate: 0.8})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(res.Branches))
	}
	root := res.Branches[0]
	if root.Depth != 0 || root.Confidence != 1.0 || root.Parent != types.NoParent {
		t.Errorf("root = depth %d conf %v parent %d", root.Depth, root.Confidence, root.Parent)
	}
	if len(root.Children) != 1 || root.Status != types.StatusExpanded {
		t.Errorf("root children = %v status = %s", root.Children, root.Status)
	}

	child := res.Branches[1]
	if child.Depth != 1 || !near(child.Confidence, 0.64) {
		t.Errorf("child = depth %d conf %v, want depth 1 conf 0.64", child.Depth, child.Confidence)
	}
	if v, _ := state.GetProp(child.State, "alice", types.Emotional); v.Text != "afraid" {
		t.Errorf("alice emotional = %q, want afraid", v.Text)
	}
	if child.Action == nil || child.Action.RuleID != "fear_grows" {
		t.Errorf("child action = %+v", child.Action)
	}
	if len(child.Children) != 0 || child.Status != types.StatusTerminal || child.EndReason != types.EndNoRules {
		t.Errorf("child = children %v status %s reason %q", child.Children, child.Status, child.EndReason)
	}

	if len(res.Ranked) != 1 || res.Ranked[0] != 1 {
		t.Errorf("Ranked = %v, want [1]", res.Ranked)
	}
	if res.Termination.Reason != types.EndExhausted || res.Termination.ByBudget {
		t.Errorf("Termination = %+v", res.Termination)
	}
	if res.Stats.Explored != 2 || res.Stats.Rounds != 2 || res.Stats.MaxDepthReached != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestRun_PruningTieBreak(t *testing.T) {
	rs := rules.Static{
		rule("b_brave", 0.8, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Emotional, "brave")),
		rule("a_calm", 0.8, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Emotional, "calm")),
	}
	res, err := New(rs).RunState(context.Background(), anxious(), nil, types.Config{MaxDepth: 1, MaxActiveBranches: 1})
	if err != nil {
		t.Fatalf("RunState failed: %v", err)
	}

	if len(res.Branches) != 3 {
		t.Fatalf("got %d branches, want 3", len(res.Branches))
	}
	kept, dropped := res.Branches[1], res.Branches[2]
	if kept.Action.RuleID != "a_calm" || kept.Status != types.StatusTerminal {
		t.Errorf("kept = rule %s status %s", kept.Action.RuleID, kept.Status)
	}
	if dropped.Action.RuleID != "b_brave" || dropped.Status != types.StatusPruned || dropped.EndReason != prune.ReasonBudget {
		t.Errorf("dropped = rule %s status %s reason %s", dropped.Action.RuleID, dropped.Status, dropped.EndReason)
	}
	if !near(kept.Confidence, dropped.Confidence) {
		t.Errorf("confidences differ: %v vs %v", kept.Confidence, dropped.Confidence)
	}
	if res.Termination.Reason != types.EndMaxDepth {
		t.Errorf("Termination = %+v", res.Termination)
	}
	if res.Stats.Pruned != 1 || res.Stats.PrunedByBudget != 1 || !near(res.Stats.PruningEfficiency, 1.0/3) {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestRun_AvoidConstraint(t *testing.T) {
	rs := rules.Static{
		rule("into_rain", 0.8, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Location, "rain")),
	}
	avoid := func(w float64) []types.Constraint {
		return []types.Constraint{{ID: "avoid_rain", Kind: types.Avoid, Target: is(types.Location, "rain"), Weight: w}}
	}
	cfg := types.Config{MaxDepth: 1}
	e := New(rs)

	plain, err := e.RunState(context.Background(), anxious(), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	half, err := e.RunState(context.Background(), anxious(), avoid(0.5), cfg)
	if err != nil {
		t.Fatal(err)
	}
	full, err := e.RunState(context.Background(), anxious(), avoid(1.0), cfg)
	if err != nil {
		t.Fatal(err)
	}

	base := plain.Branches[1].Confidence
	if !near(base, 0.64) {
		t.Fatalf("unconstrained = %v, want 0.64", base)
	}
	if got := half.Branches[1].Confidence; !near(base-got, 0.5) {
		t.Errorf("constrained = %v, want %v", got, base-0.5)
	}
	if v := half.Branches[1].Violated; len(v) != 1 || v[0] != "avoid_rain" {
		t.Errorf("Violated = %v", v)
	}
	if got := full.Branches[1].Confidence; got != 0 {
		t.Errorf("heavily constrained = %v, want 0", got)
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := types.Config{MaxDepth: 3, MinConfidence: 0.3, MaxActiveBranches: 3}
	run := func(workers int) *types.SimulationResult {
		c := cfg
		c.Workers = workers
		res, err := New(branching(), WithClock(fixedClock())).RunState(context.Background(), anxious(), nil, c)
		if err != nil {
			t.Fatal(err)
		}
		res.Config.Workers = 0
		return res
	}

	a, b := run(1), run(1)
	if !reflect.DeepEqual(a, b) {
		t.Error("two identical runs differ")
	}
	if c := run(4); !reflect.DeepEqual(a, c) {
		t.Error("parallel expansion differs from sequential")
	}
}

func TestRun_Invariants(t *testing.T) {
	rs := append(branching(),
		rule("haunt", 0.9, []types.Predicate{is(types.Emotional, "afraid")},
			types.Effect{Type: types.EffAddRelationship, Target: "?x", Relation: "FEARS", Object: "ghost"}),
		rule("boost", 1.0, []types.Predicate{is(types.Physical, "tired")}, becomes(types.Temporal, "night")),
	)
	cs := []types.Constraint{{ID: "achieve_night", Kind: types.Achieve, Target: is(types.Temporal, "night"), Weight: 0.9}}
	res, err := New(rs).RunState(context.Background(), anxious(), cs, types.Config{MaxDepth: 4, MinConfidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}

	for _, b := range res.Branches {
		if b.Confidence < 0 || b.Confidence > 1 {
			t.Errorf("branch %d confidence %v out of bounds", b.ID, b.Confidence)
		}
		for _, r := range b.State.Relationships {
			if !state.HasEntity(b.State, r.From) || !state.HasEntity(b.State, r.To) {
				t.Errorf("branch %d has dangling relationship %+v", b.ID, r)
			}
		}
	}
	if res.Branches[0].Confidence != 1.0 || res.Branches[0].Depth != 0 {
		t.Errorf("root = %+v", res.Branches[0])
	}
	if res.Stats.Rejected == 0 {
		t.Error("expected the dangling FEARS transition to be rejected")
	}
	if n := len(events.Filter(res.Events, events.TransitionRejected)); n != res.Stats.Rejected {
		t.Errorf("%d rejection events, %d rejected", n, res.Stats.Rejected)
	}
}

func TestRun_SurvivorGuarantee(t *testing.T) {
	res, err := New(branching()).RunState(context.Background(), anxious(), nil, types.Config{MaxDepth: 2, MinConfidence: 0.99})
	if err != nil {
		t.Fatal(err)
	}

	// calm_down is child 1 (0.56), get_afraid child 2 (0.64).
	if res.Stats.SurvivorsKept == 0 {
		t.Fatal("expected a survivor to be kept")
	}
	kept := events.Filter(res.Events, events.SurvivorKept)
	if len(kept) == 0 || kept[0].Data["branch"] != 2 {
		t.Errorf("survivor events = %v", kept)
	}
	if res.Branches[2].Status == types.StatusPruned {
		t.Error("best branch was pruned")
	}
	if res.Branches[1].Status != types.StatusPruned || res.Branches[1].EndReason != prune.ReasonThreshold {
		t.Errorf("branch 1 = %s %s", res.Branches[1].Status, res.Branches[1].EndReason)
	}
	if len(res.Ranked) == 0 {
		t.Error("run produced no outcomes")
	}
}

func TestRun_RootOnly(t *testing.T) {
	res, err := New(rules.Static{}).RunState(context.Background(), anxious(), nil, types.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Branches) != 1 || res.Branches[0].EndReason != types.EndNoRules {
		t.Errorf("branches = %+v", res.Branches)
	}
	if len(res.Ranked) != 1 || res.Termination.Reason != types.EndExhausted {
		t.Errorf("ranked %v termination %+v", res.Ranked, res.Termination)
	}
}

func TestRun_NoOpsSkipped(t *testing.T) {
	rs := rules.Static{
		rule("stay", 0.9, []types.Predicate{is(types.Emotional, "anxious")}, becomes(types.Emotional, "anxious")),
	}
	res, err := New(rs).RunState(context.Background(), anxious(), nil, types.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.NoOps != 1 || len(res.Branches) != 1 {
		t.Errorf("NoOps = %d, branches = %d", res.Stats.NoOps, len(res.Branches))
	}
	if res.Branches[0].EndReason != types.EndExhausted {
		t.Errorf("root end reason = %q", res.Branches[0].EndReason)
	}
}

func TestRun_Budgets(t *testing.T) {
	past, cancelPast := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelPast()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		cfg      types.Config
		reason   string
		byBudget bool
		explored int
	}{
		{"step budget", context.Background(), types.Config{MaxSteps: 1}, types.EndStepBudget, true, 3},
		{"branch budget", context.Background(), types.Config{MaxBranches: 2}, types.EndBranchBudget, true, 2},
		{"timeout", past, types.Config{}, types.EndTimeout, true, 1},
		{"cancelled", cancelled, types.Config{}, types.EndCancelled, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(branching()).RunState(tt.ctx, anxious(), nil, tt.cfg)
			if err != nil {
				t.Fatalf("budget stop must not be an error: %v", err)
			}
			if res.Termination.Reason != tt.reason || res.Termination.ByBudget != tt.byBudget {
				t.Errorf("Termination = %+v", res.Termination)
			}
			if res.Stats.Explored != tt.explored {
				t.Errorf("Explored = %d, want %d", res.Stats.Explored, tt.explored)
			}
			for _, id := range res.Ranked {
				b := res.Branches[id]
				if b.Status != types.StatusTerminal {
					t.Errorf("branch %d left %s", id, b.Status)
				}
			}
		})
	}
}

func TestRun_MaxChildren(t *testing.T) {
	top, err := New(branching()).RunState(context.Background(), anxious(), nil, types.Config{MaxDepth: 1, MaxChildren: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(top.Branches) != 2 || top.Branches[1].Action.RuleID != "get_afraid" {
		t.Errorf("top sampling kept %+v", top.Branches[1:])
	}
	if top.Stats.RNGDraws != 0 {
		t.Errorf("top sampling drew %d numbers", top.Stats.RNGDraws)
	}

	cfg := types.Config{MaxDepth: 1, MaxChildren: 1, Sampling: types.SampleSeeded, Seed: 42}
	a, _ := New(branching(), WithClock(fixedClock())).RunState(context.Background(), anxious(), nil, cfg)
	b, _ := New(branching(), WithClock(fixedClock())).RunState(context.Background(), anxious(), nil, cfg)
	if len(a.Branches) != 2 || a.Stats.RNGDraws != 1 {
		t.Errorf("seeded: %d branches, %d draws", len(a.Branches), a.Stats.RNGDraws)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("seeded sampling is not reproducible")
	}
}

func TestRun_Phases(t *testing.T) {
	res, err := New(rules.Static{fearRule}).Run(context.Background(), forestText, nil, types.Config{MaxDepth: 2})
	if err != nil {
		t.Fatal(err)
	}
	var phases []string
	for _, ev := range events.Filter(res.Events, events.PhaseChanged) {
		phases = append(phases, ev.Data["phase"].(string))
	}
	want := []string{"initialized", "expanding", "pruning", "expanding", "pruning", "terminated"}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestRun_Errors(t *testing.T) {
	e := New(rules.Static{fearRule})

	_, err := e.Run(context.Background(), forestText, nil, types.Config{Policy: "random"})
	if !errors.Is(err, transition.ErrConflictUnresolved) {
		t.Errorf("unknown policy: err = %v", err)
	}

	_, err = e.Run(context.Background(), "the rain falls", nil, types.Config{})
	if !errors.Is(err, parser.ErrNoEntitiesFound) {
		t.Errorf("no entities: err = %v", err)
	}

	bad := anxious()
	state.AddRelationship(bad, types.Relationship{From: "alice", Type: "NEAR", To: "bob", Strength: 1})
	_, err = e.RunState(context.Background(), bad, nil, types.Config{})
	if !errors.Is(err, state.ErrDanglingRelationship) {
		t.Errorf("invalid initial state: err = %v", err)
	}
}

type failingSource struct{}

func (failingSource) Rules(context.Context, string) ([]types.Rule, error) {
	return nil, errors.New("store offline")
}

func TestRun_RuleSourceError(t *testing.T) {
	if _, err := New(failingSource{}).Run(context.Background(), forestText, nil, types.Config{}); err == nil {
		t.Error("expected rule source error")
	}
}

type sink struct {
	episodes []types.Episode
	err      error
}

func (s *sink) Record(_ context.Context, ep types.Episode) error {
	s.episodes = append(s.episodes, ep)
	return s.err
}

func TestRun_RecordsEpisode(t *testing.T) {
	sk := &sink{}
	e := New(rules.Static{fearRule}, WithEpisodes(sk), WithClock(fixedClock()))
	if _, err := e.Run(context.Background(), forestText, nil, types.Config{MaxDepth: 2}); err != nil {
		t.Fatal(err)
	}
	if len(sk.episodes) != 1 {
		t.Fatalf("recorded %d episodes, want 1", len(sk.episodes))
	}
	ep := sk.episodes[0]
	if ep.ID == "" || ep.Input != forestText || !ep.RecordedAt.Equal(fixedClock()()) {
		t.Errorf("episode = %+v", ep)
	}
	if len(ep.Outcomes) != 1 || len(ep.Outcomes[0].Rules) != 1 || ep.Outcomes[0].Rules[0] != "fear_grows" {
		t.Errorf("outcomes = %+v", ep.Outcomes)
	}
	if ep.Outcomes[0].Summary != "Alice feels afraid" {
		t.Errorf("summary = %q", ep.Outcomes[0].Summary)
	}
}

func TestRun_SinkFailureIgnored(t *testing.T) {
	sk := &sink{err: errors.New("disk full")}
	res, err := New(rules.Static{fearRule}, WithEpisodes(sk)).Run(context.Background(), forestText, nil, types.Config{MaxDepth: 2})
	if err != nil || res == nil {
		t.Fatalf("sink failure leaked into Run: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(types.Config{MaxDepth: 3, MinConfidence: 0})
	if got.MaxDepth != 3 || got.MinConfidence != 0 {
		t.Errorf("explicit values changed: %+v", got)
	}
	def := DefaultConfig()
	if got.DecayRate != def.DecayRate || got.Policy != def.Policy || got.MaxSteps != def.MaxSteps || got.Workers != 1 {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestRunState_CopiesInput(t *testing.T) {
	s := anxious()
	s.Valid = false

	res, err := New(rules.Static{}).RunState(context.Background(), s, nil, types.Config{})
	if err != nil {
		t.Fatalf("RunState failed: %v", err)
	}
	root := res.Branches[0].State
	if root == s {
		t.Fatal("root branch shares the caller's state")
	}
	if s.Valid {
		t.Error("validation wrote to the caller's state")
	}
	if !root.Valid {
		t.Error("root state should be marked valid")
	}

	state.SetProp(s, "alice", types.Emotional, state.Text("calm"))
	state.AddEntity(s, "bob", "Person")
	if v, _ := state.GetProp(root, "alice", types.Emotional); v.Text != "anxious" {
		t.Errorf("root emotional = %q after caller edit, want anxious", v.Text)
	}
	if state.HasEntity(root, "bob") {
		t.Error("entity added by the caller appeared in the result")
	}
}

func TestRunState_NilState(t *testing.T) {
	_, err := New(rules.Static{}).RunState(context.Background(), nil, nil, types.Config{})
	if err == nil {
		t.Fatal("expected error for nil state")
	}
}
