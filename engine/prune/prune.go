// Package prune deactivates low-value frontier branches to bound the search.
package prune

import (
	"sort"

	"github.com/nathoo/simcore/engine/branch"
	"github.com/nathoo/simcore/types"
)

// Pruning reasons recorded on branches.
const (
	ReasonThreshold = "below_threshold"
	ReasonBudget    = "over_budget"
)

// Pruner applies threshold and budget pruning to the active frontier.
type Pruner struct {
	MinConfidence float64 // branches below this are pruned; 0 disables
	MaxActive     int     // frontier size cap; 0 disables
}

// Report describes one pruning round.
type Report struct {
	Threshold []int // pruned for low confidence
	Budget    []int // pruned for exceeding MaxActive
	Survivor  int   // kept despite the rules, or -1
	Remaining int   // active branches after the round
}

// Pruned returns the total number of branches pruned.
func (r Report) Pruned() int {
	return len(r.Threshold) + len(r.Budget)
}

// Prune runs one round over t's frontier. Threshold pruning runs first,
// then the remaining branches are ranked by confidence (desc, ties by ID)
// and those past MaxActive are pruned. If every active branch would be
// pruned, the highest-ranked one is kept. Only statuses change.
func (p Pruner) Prune(t *branch.Tree) Report {
	rep := Report{Survivor: -1}
	frontier := t.Frontier()
	if len(frontier) == 0 {
		return rep
	}

	conf := make(map[int]float64, len(frontier))
	for _, id := range frontier {
		b, _ := t.Get(id)
		conf[id] = b.Confidence
	}
	ranked := append([]int(nil), frontier...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if conf[ranked[i]] != conf[ranked[j]] {
			return conf[ranked[i]] > conf[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	var kept []int
	for _, id := range ranked {
		if conf[id] < p.MinConfidence {
			rep.Threshold = append(rep.Threshold, id)
			continue
		}
		kept = append(kept, id)
	}
	if p.MaxActive > 0 && len(kept) > p.MaxActive {
		rep.Budget = append(rep.Budget, kept[p.MaxActive:]...)
		kept = kept[:p.MaxActive]
	}

	if len(kept) == 0 {
		best := ranked[0]
		rep.Survivor = best
		rep.Threshold = without(rep.Threshold, best)
		rep.Budget = without(rep.Budget, best)
		kept = []int{best}
	}

	sort.Ints(rep.Threshold)
	sort.Ints(rep.Budget)
	for _, id := range rep.Threshold {
		t.SetStatus(id, types.StatusPruned, ReasonThreshold)
	}
	for _, id := range rep.Budget {
		t.SetStatus(id, types.StatusPruned, ReasonBudget)
	}
	rep.Remaining = len(kept)
	return rep
}

func without(ids []int, x int) []int {
	out := ids[:0:0]
	for _, id := range ids {
		if id != x {
			out = append(out, id)
		}
	}
	return out
}
