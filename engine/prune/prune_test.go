package prune

import (
	"testing"

	"github.com/nathoo/simcore/engine/branch"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// frontier builds a root with one active child per confidence.
func frontier(confs ...float64) *branch.Tree {
	t := branch.New()
	root := t.AddRoot(state.New(), 1, nil, nil)
	for _, c := range confs {
		t.AddChild(root, state.New(), types.Action{}, c, nil, nil)
	}
	t.SetStatus(root, types.StatusExpanded, "")
	return t
}

func TestPrune_Threshold(t *testing.T) {
	tr := frontier(0.5, 0.05, 0.3, 0.01)
	rep := Pruner{MinConfidence: 0.1}.Prune(tr)

	if len(rep.Threshold) != 2 || rep.Threshold[0] != 2 || rep.Threshold[1] != 4 {
		t.Errorf("Threshold = %v, want [2 4]", rep.Threshold)
	}
	if rep.Survivor != -1 {
		t.Errorf("Survivor = %d, want -1", rep.Survivor)
	}
	if got := tr.Frontier(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Frontier = %v, want [1 3]", got)
	}
	b, _ := tr.Get(2)
	if b.Status != types.StatusPruned || b.EndReason != ReasonThreshold {
		t.Errorf("branch 2 = %s/%s", b.Status, b.EndReason)
	}
}

func TestPrune_Budget(t *testing.T) {
	tr := frontier(0.2, 0.9, 0.5, 0.7)
	rep := Pruner{MaxActive: 2}.Prune(tr)
	if len(rep.Budget) != 2 || rep.Budget[0] != 1 || rep.Budget[1] != 3 {
		t.Errorf("Budget = %v, want [1 3]", rep.Budget)
	}
	if got := tr.Frontier(); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Frontier = %v, want [2 4]", got)
	}
}

func TestPrune_BudgetTieBreakByID(t *testing.T) {
	tr := frontier(0.64, 0.64)
	rep := Pruner{MaxActive: 1}.Prune(tr)
	if got := tr.Frontier(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Frontier = %v, want [1]", got)
	}
	if len(rep.Budget) != 1 || rep.Budget[0] != 2 {
		t.Errorf("Budget = %v, want [2]", rep.Budget)
	}
}

func TestPrune_SurvivorGuarantee(t *testing.T) {
	tests := []struct {
		name  string
		confs []float64
		p     Pruner
		want  int
	}{
		{"all below threshold", []float64{0.2, 0.4, 0.3}, Pruner{MinConfidence: 0.9}, 2},
		{"threshold of one", []float64{0.5, 0.5}, Pruner{MinConfidence: 1.0, MaxActive: 1}, 1},
		{"single branch", []float64{0.0}, Pruner{MinConfidence: 0.01}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := frontier(tt.confs...)
			rep := tt.p.Prune(tr)
			if rep.Survivor != tt.want {
				t.Errorf("Survivor = %d, want %d", rep.Survivor, tt.want)
			}
			got := tr.Frontier()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Frontier = %v, want [%d]", got, tt.want)
			}
			if rep.Remaining != 1 {
				t.Errorf("Remaining = %d, want 1", rep.Remaining)
			}
			if rep.Pruned() != len(tt.confs)-1 {
				t.Errorf("Pruned = %d, want %d", rep.Pruned(), len(tt.confs)-1)
			}
		})
	}
}

func TestPrune_EmptyFrontier(t *testing.T) {
	tr := frontier()
	rep := Pruner{MinConfidence: 0.5}.Prune(tr)
	if rep.Pruned() != 0 || rep.Survivor != -1 {
		t.Errorf("empty frontier report = %+v", rep)
	}
}

func TestPrune_KeepsNodes(t *testing.T) {
	tr := frontier(0.1, 0.2, 0.3)
	Pruner{MinConfidence: 0.25}.Prune(tr)
	if tr.Len() != 4 {
		t.Errorf("Len = %d, want 4", tr.Len())
	}
}
