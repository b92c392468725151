// Package branch stores the explored simulation tree as an arena of
// branches indexed by ID. Parent and child links are IDs.
package branch

import (
	"sort"
	"sync"

	"github.com/nathoo/simcore/types"
)

// Tree is an append-only arena of branches. Nodes are never removed;
// pruning and termination only change status. Safe for concurrent readers.
type Tree struct {
	mu    sync.RWMutex
	nodes []types.Branch
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of branches.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// AddRoot inserts the root branch and returns its ID (0).
func (t *Tree) AddRoot(s *types.State, conf float64, satisfied, violated []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.nodes)
	t.nodes = append(t.nodes, types.Branch{
		ID:         id,
		Parent:     types.NoParent,
		State:      s,
		Depth:      0,
		Confidence: conf,
		Satisfied:  satisfied,
		Violated:   violated,
		Status:     types.StatusActive,
		Active:     true,
	})
	return id
}

// AddChild appends an active child of parent and returns its ID.
func (t *Tree) AddChild(parent int, s *types.State, a types.Action, conf float64, satisfied, violated []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.nodes)
	action := a
	t.nodes = append(t.nodes, types.Branch{
		ID:         id,
		Parent:     parent,
		State:      s,
		Depth:      t.nodes[parent].Depth + 1,
		Confidence: conf,
		Action:     &action,
		Satisfied:  satisfied,
		Violated:   violated,
		Status:     types.StatusActive,
		Active:     true,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Get returns a copy of the branch with the given ID.
func (t *Tree) Get(id int) (types.Branch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.nodes) {
		return types.Branch{}, false
	}
	return t.nodes[id], true
}

// SetStatus moves a branch to status and records why.
func (t *Tree) SetStatus(id int, status types.BranchStatus, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.nodes[id]
	b.Status = status
	b.Active = status == types.StatusActive
	if reason != "" {
		b.EndReason = reason
	}
}

// Children returns the child IDs of id.
func (t *Tree) Children(id int) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return append([]int(nil), t.nodes[id].Children...)
}

// Frontier returns the IDs of active branches in ID order.
func (t *Tree) Frontier() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []int
	for _, b := range t.nodes {
		if b.Active {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Path returns the IDs from the root to id, inclusive.
func (t *Tree) Path(id int) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var path []int
	for id >= 0 && id < len(t.nodes) {
		path = append(path, id)
		id = t.nodes[id].Parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Leaves returns the IDs of branches without children, in ID order.
func (t *Tree) Leaves() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []int
	for _, b := range t.nodes {
		if len(b.Children) == 0 {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Ranked returns the IDs of active and terminal branches ordered by
// confidence (desc), ties broken by ID (asc).
func (t *Tree) Ranked() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []int
	for _, b := range t.nodes {
		if b.Status == types.StatusActive || b.Status == types.StatusTerminal {
			ids = append(ids, b.ID)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ci, cj := t.nodes[ids[i]].Confidence, t.nodes[ids[j]].Confidence
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Count returns the number of branches with the given status.
func (t *Tree) Count(status types.BranchStatus) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, b := range t.nodes {
		if b.Status == status {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of every branch. States are shared; they are
// not modified after insertion.
func (t *Tree) Snapshot() []types.Branch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Branch, len(t.nodes))
	for i, b := range t.nodes {
		b.Children = append([]int(nil), b.Children...)
		out[i] = b
	}
	return out
}
