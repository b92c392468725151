package branch

import (
	"testing"

	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

func buildTree() *Tree {
	t := New()
	root := t.AddRoot(state.New(), 1.0, nil, nil)
	a := t.AddChild(root, state.New(), types.Action{RuleID: "a"}, 0.5, nil, nil)
	t.AddChild(root, state.New(), types.Action{RuleID: "b"}, 0.7, nil, nil)
	t.AddChild(a, state.New(), types.Action{RuleID: "c"}, 0.5, nil, nil)
	t.SetStatus(root, types.StatusExpanded, "")
	t.SetStatus(a, types.StatusExpanded, "")
	return t
}

func TestTree_Structure(t *testing.T) {
	tr := buildTree()
	if tr.Len() != 4 {
		t.Fatalf("Len = %d, want 4", tr.Len())
	}
	root, _ := tr.Get(0)
	if root.Parent != types.NoParent || root.Depth != 0 || root.Confidence != 1.0 {
		t.Errorf("root = %+v", root)
	}
	if got := tr.Children(0); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Children(0) = %v", got)
	}
	leaf, _ := tr.Get(3)
	if leaf.Depth != 2 || leaf.Parent != 1 || leaf.Action.RuleID != "c" {
		t.Errorf("leaf = %+v", leaf)
	}
	if got := tr.Path(3); len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 3 {
		t.Errorf("Path(3) = %v", got)
	}
	if _, ok := tr.Get(99); ok {
		t.Error("Get(99) should fail")
	}
}

func TestTree_FrontierAndStatus(t *testing.T) {
	tr := buildTree()
	if got := tr.Frontier(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Frontier = %v, want [2 3]", got)
	}
	tr.SetStatus(2, types.StatusPruned, "threshold")
	b, _ := tr.Get(2)
	if b.Active || b.EndReason != "threshold" {
		t.Errorf("pruned branch = %+v", b)
	}
	if tr.Len() != 4 {
		t.Error("pruning must not remove nodes")
	}
	if tr.Count(types.StatusPruned) != 1 {
		t.Errorf("Count(pruned) = %d", tr.Count(types.StatusPruned))
	}
}

func TestTree_Ranked(t *testing.T) {
	tr := buildTree()
	tr.SetStatus(3, types.StatusTerminal, "no_rules")
	got := tr.Ranked()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Ranked = %v, want [2 3]", got)
	}
}

func TestTree_RankedTieByID(t *testing.T) {
	tr := New()
	root := tr.AddRoot(state.New(), 1, nil, nil)
	tr.AddChild(root, state.New(), types.Action{}, 0.4, nil, nil)
	tr.AddChild(root, state.New(), types.Action{}, 0.4, nil, nil)
	tr.SetStatus(root, types.StatusExpanded, "")
	if got := tr.Ranked(); got[0] != 1 || got[1] != 2 {
		t.Errorf("Ranked = %v, want [1 2]", got)
	}
}

func TestTree_SnapshotIsCopy(t *testing.T) {
	tr := buildTree()
	snap := tr.Snapshot()
	snap[0].Children[0] = 42
	if tr.Children(0)[0] == 42 {
		t.Error("Snapshot should not alias tree storage")
	}
}

func TestTree_Leaves(t *testing.T) {
	tr := buildTree()
	if got := tr.Leaves(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Leaves = %v, want [2 3]", got)
	}
}
