// Package save implements JSON serialization of simulation results and a
// compact YAML export of their ranked outcomes.
package save

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/types"
)

// FormatVersion is written into every save and checked on load.
const FormatVersion = "1"

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version string                 `json:"version"`
	Result  types.SimulationResult `json:"result"`
}

// Save serializes a result to indented JSON.
func Save(res *types.SimulationResult) ([]byte, error) {
	return json.MarshalIndent(SaveData{Version: FormatVersion, Result: *res}, "", "  ")
}

// Load deserializes a saved result. Numbers inside event data come back
// as float64.
func Load(data []byte) (*types.SimulationResult, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("save format %q not supported (want %q)", sd.Version, FormatVersion)
	}
	res := &sd.Result
	// Ensure maps and slices are never nil after load.
	if res.Ranked == nil {
		res.Ranked = []int{}
	}
	if res.Branches == nil {
		res.Branches = []types.Branch{}
	}
	for i := range res.Branches {
		b := &res.Branches[i]
		if b.State == nil {
			b.State = &types.State{}
		}
		if b.State.Entities == nil {
			b.State.Entities = map[string]types.Entity{}
		}
		for id, e := range b.State.Entities {
			if e.Props == nil {
				e.Props = map[types.PropertyKind]types.Value{}
				b.State.Entities[id] = e
			}
		}
	}
	return res, nil
}

// Export is the compact view of a result: what happened, not the full
// tree.
type Export struct {
	Input       string             `json:"input" yaml:"input"`
	Termination string             `json:"termination" yaml:"termination"`
	ByBudget    bool               `json:"by_budget,omitempty" yaml:"by_budget,omitempty"`
	Explored    int                `json:"explored" yaml:"explored"`
	Pruned      int                `json:"pruned" yaml:"pruned"`
	Efficiency  float64            `json:"pruning_efficiency" yaml:"pruning_efficiency"`
	Outcomes    []ExportOutcome    `json:"outcomes" yaml:"outcomes"`
	Constraints []ExportConstraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ExportOutcome is one ranked branch.
type ExportOutcome struct {
	Branch     int      `json:"branch" yaml:"branch"`
	Depth      int      `json:"depth" yaml:"depth"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Rules      []string `json:"rules" yaml:"rules,flow"`
	Story      string   `json:"story" yaml:"story"`
	Satisfied  []string `json:"satisfied,omitempty" yaml:"satisfied,omitempty,flow"`
	Violated   []string `json:"violated,omitempty" yaml:"violated,omitempty,flow"`
	State      []string `json:"state" yaml:"state"`
}

// ExportConstraint is a constraint as the user wrote it.
type ExportConstraint struct {
	ID     string  `json:"id" yaml:"id"`
	Kind   string  `json:"kind" yaml:"kind"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Summarize builds the export view of the top limit ranked outcomes. A
// limit of zero or less keeps all of them.
func Summarize(res *types.SimulationResult, limit int) Export {
	ex := Export{
		Input:       res.Input,
		Termination: res.Termination.Reason,
		ByBudget:    res.Termination.ByBudget,
		Explored:    res.Stats.Explored,
		Pruned:      res.Stats.Pruned,
		Efficiency:  res.Stats.PruningEfficiency,
		Outcomes:    []ExportOutcome{},
	}
	for _, c := range res.Constraints {
		ex.Constraints = append(ex.Constraints, ExportConstraint{ID: c.ID, Kind: string(c.Kind), Weight: c.Weight})
	}
	for i, id := range res.Ranked {
		if limit > 0 && i == limit {
			break
		}
		b := res.Branches[id]
		ex.Outcomes = append(ex.Outcomes, ExportOutcome{
			Branch:     b.ID,
			Depth:      b.Depth,
			Confidence: b.Confidence,
			Rules:      narrate.Rules(res.Branches, id),
			Story:      narrate.Path(res.Branches, id),
			Satisfied:  b.Satisfied,
			Violated:   b.Violated,
			State:      narrate.State(b.State),
		})
	}
	return ex
}

// ExportYAML renders Summarize(res, limit) as YAML.
func ExportYAML(res *types.SimulationResult, limit int) ([]byte, error) {
	return yaml.Marshal(Summarize(res, limit))
}
