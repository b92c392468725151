package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/loader"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pack, err := loader.LoadDir("../packs/forest")
	if err != nil {
		t.Fatalf("loading pack: %v", err)
	}
	eng := engine.New(pack, engine.WithHints(pack))
	return NewServer(eng, pack, engine.DefaultConfig(), pack.Constraints(), "test")
}

func TestSimulate(t *testing.T) {
	server := newTestServer(t)

	_, output, err := server.handleSimulate(context.Background(), nil, SimulateInput{
		Text:        "Alice walks into a dark forest feeling anxious",
		Constraints: []string{"reach calm mood 0.4"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Input != "Alice walks into a dark forest feeling anxious" || output.Termination == "" {
		t.Fatalf("unexpected output header: %+v", output)
	}
	if len(output.Outcomes) == 0 || len(output.Outcomes) > defaultTop {
		t.Fatalf("got %d outcomes", len(output.Outcomes))
	}

	ids := map[string]bool{}
	for _, c := range output.Constraints {
		ids[c.ID] = true
	}
	if !ids["avoid_afraid"] || !ids["achieve_calm"] {
		t.Errorf("constraints = %+v, want pack and caller constraints", output.Constraints)
	}
}

func TestSimulate_Overrides(t *testing.T) {
	server := newTestServer(t)

	_, output, err := server.handleSimulate(context.Background(), nil, SimulateInput{
		Text:     "Alice walks into a dark forest feeling anxious",
		MaxDepth: 1,
		Top:      1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(output.Outcomes))
	}
	if output.Outcomes[0].Depth > 1 {
		t.Errorf("outcome depth = %d beyond max depth 1", output.Outcomes[0].Depth)
	}
}

func TestSimulate_Errors(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name  string
		input SimulateInput
		want  string
	}{
		{"empty text", SimulateInput{}, "text is required"},
		{"bad constraint", SimulateInput{Text: "Alice is anxious", Constraints: []string{"maybe rain"}}, "unknown verb"},
		{"bad policy", SimulateInput{Text: "Alice is anxious", Policy: "random"}, "random"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleSimulate(context.Background(), nil, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestListRules(t *testing.T) {
	server := newTestServer(t)

	_, output, err := server.handleListRules(context.Background(), nil, ListRulesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Rules) != 8 {
		t.Fatalf("got %d rules, want 8", len(output.Rules))
	}
	for i := 1; i < len(output.Rules); i++ {
		if output.Rules[i-1].ID >= output.Rules[i].ID {
			t.Errorf("rules not sorted: %s before %s", output.Rules[i-1].ID, output.Rules[i].ID)
		}
	}

	_, output, err = server.handleListRules(context.Background(), nil, ListRulesInput{Scenario: "Bob walks in the rain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range output.Rules {
		if r.ID == "fear_grows" {
			t.Error("forest-only rule listed for a rain scenario")
		}
	}
	if len(output.Rules) != 6 {
		t.Errorf("got %d rain rules, want 6", len(output.Rules))
	}
}
