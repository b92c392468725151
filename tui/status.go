package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing the
// run settings on the left and the last result on the right.
func (m Model) renderStatusBar() string {
	left := fmt.Sprintf(" %s | depth %d | constraints %d", m.cfg.Policy, m.cfg.MaxDepth, len(m.constraints))

	var right string
	switch {
	case m.running:
		right = "simulating… "
	case m.result != nil:
		st := m.result.Stats
		right = fmt.Sprintf("%s | %d explored, %d pruned | #%d ", m.result.Termination.Reason, st.Explored, st.Pruned, m.selected)
		if lipgloss.Width(left)+lipgloss.Width(right)+2 >= m.width {
			right = fmt.Sprintf("%d/%d | #%d ", st.Explored, st.Pruned, m.selected)
		}
	}
	if m.mode == modeTree {
		left += " | tree"
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
