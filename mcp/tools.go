package mcp

import (
	"context"
	"fmt"
	"sort"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/save"
	"github.com/nathoo/simcore/types"
)

// defaultTop is how many outcomes simulate returns when Top is unset.
const defaultTop = 5

type SimulateInput struct {
	Text        string   `json:"text" jsonschema:"scenario description, e.g. 'Alice walks into a dark forest feeling anxious'"`
	Constraints []string `json:"constraints,omitempty" jsonschema:"directives such as 'avoid Location(rain) 0.5' or 'reach happy mood'"`
	MaxDepth    int      `json:"max_depth,omitempty" jsonschema:"maximum number of steps to look ahead"`
	Policy      string   `json:"policy,omitempty" jsonschema:"all_branches, highest_confidence or merge"`
	MaxActive   int      `json:"max_active_branches,omitempty" jsonschema:"frontier size kept after each round"`
	Top         int      `json:"top,omitempty" jsonschema:"number of ranked outcomes to return (default 5)"`
}

type ListRulesInput struct {
	Scenario string `json:"scenario,omitempty" jsonschema:"only rules that apply to this scenario text"`
}

type RuleOutput struct {
	ID         string   `json:"id"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
	Source     string   `json:"source,omitempty"`
	Conditions int      `json:"conditions"`
	Effects    int      `json:"effects"`
}

type ListRulesOutput struct {
	Rules []RuleOutput `json:"rules"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "simulate",
		Description: "Simulate how a described scenario may unfold and return the most likely outcomes",
	}, s.handleSimulate)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_rules",
		Description: "List the causal rules the simulator knows",
	}, s.handleListRules)
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, input SimulateInput) (*sdk.CallToolResult, save.Export, error) {
	if input.Text == "" {
		return nil, save.Export{}, fmt.Errorf("text is required")
	}

	cs := append([]types.Constraint(nil), s.constraints...)
	for _, d := range input.Constraints {
		c, err := parser.ParseConstraint(d)
		if err != nil {
			return nil, save.Export{}, err
		}
		cs = append(cs, c)
	}

	cfg := s.cfg
	if input.MaxDepth > 0 {
		cfg.MaxDepth = input.MaxDepth
	}
	if input.Policy != "" {
		cfg.Policy = types.Policy(input.Policy)
	}
	if input.MaxActive > 0 {
		cfg.MaxActiveBranches = input.MaxActive
	}

	res, err := s.engine.Run(ctx, input.Text, cs, cfg)
	if err != nil {
		return nil, save.Export{}, err
	}

	top := input.Top
	if top <= 0 {
		top = defaultTop
	}
	return nil, save.Summarize(res, top), nil
}

func (s *Server) handleListRules(ctx context.Context, req *sdk.CallToolRequest, input ListRulesInput) (*sdk.CallToolResult, ListRulesOutput, error) {
	var list []types.Rule
	if input.Scenario == "" {
		list = s.catalog.All()
	} else {
		var err error
		if list, err = s.catalog.Rules(ctx, input.Scenario); err != nil {
			return nil, ListRulesOutput{}, err
		}
	}

	output := make([]RuleOutput, 0, len(list))
	for _, r := range list {
		output = append(output, RuleOutput{
			ID:         r.ID,
			Confidence: r.Confidence,
			Tags:       r.Tags,
			Source:     r.Source,
			Conditions: len(r.Pattern),
			Effects:    len(r.Outcome),
		})
	}
	sort.Slice(output, func(i, j int) bool { return output[i].ID < output[j].ID })
	return nil, ListRulesOutput{Rules: output}, nil
}
