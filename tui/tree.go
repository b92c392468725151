package tui

import (
	"fmt"
	"strings"

	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/types"
)

// treeRow is one line of the rendered branch tree.
type treeRow struct {
	id     int
	prefix string
}

// flatten lists branches depth-first from each root, children in the
// order they were created, with box-drawing prefixes.
func flatten(branches []types.Branch) []treeRow {
	var rows []treeRow
	var walk func(id int, indent string, last, root bool)
	walk = func(id int, indent string, last, root bool) {
		prefix, next := "", ""
		switch {
		case root:
		case last:
			prefix, next = indent+"└─ ", indent+"   "
		default:
			prefix, next = indent+"├─ ", indent+"│  "
		}
		rows = append(rows, treeRow{id: id, prefix: prefix})
		kids := branches[id].Children
		for i, k := range kids {
			walk(k, next, i == len(kids)-1, false)
		}
	}
	for _, b := range branches {
		if b.Parent == types.NoParent {
			walk(b.ID, "", true, true)
		}
	}
	return rows
}

// treeLabel is the one-line description of a branch in the tree.
func treeLabel(b types.Branch) string {
	step := "start"
	if b.Action != nil {
		step = b.Action.RuleID
	}
	label := fmt.Sprintf("#%d %s %.1f%%", b.ID, step, b.Confidence*100)
	switch b.Status {
	case types.StatusPruned:
		label += " (pruned: " + b.EndReason + ")"
	case types.StatusTerminal:
		label += " (" + b.EndReason + ")"
	case types.StatusActive:
		label += " (active)"
	}
	return label
}

// renderTree draws the tree with the selected branch highlighted.
func renderTree(res *types.SimulationResult, selected int) []string {
	rows := flatten(res.Branches)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		b := res.Branches[r.id]
		label := treeLabel(b)
		if r.id == selected {
			label = styleSelected.Render(label)
		} else if st, ok := statusStyles[b.Status]; ok {
			label = st.Render(label)
		}
		lines = append(lines, r.prefix+label)
	}
	return lines
}

// renderDetail describes one branch: how it was reached, its constraint
// matches and its full state.
func renderDetail(res *types.SimulationResult, id int) []string {
	b := res.Branches[id]
	lines := []string{
		styleHeading.Render(fmt.Sprintf("Branch #%d", b.ID)),
		fmt.Sprintf("depth %d  confidence %.1f%%  %s", b.Depth, b.Confidence*100, b.Status),
		narrate.Path(res.Branches, id),
	}
	if len(b.Satisfied) > 0 {
		lines = append(lines, styleSatisfied.Render("satisfied: "+strings.Join(b.Satisfied, ", ")))
	}
	if len(b.Violated) > 0 {
		lines = append(lines, styleViolated.Render("violated: "+strings.Join(b.Violated, ", ")))
	}
	for _, l := range narrate.State(b.State) {
		lines = append(lines, "  "+l)
	}
	return lines
}
