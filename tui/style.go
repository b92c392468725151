package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/simcore/types"
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleOutcome = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSummary = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleUserInput = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("24")).
			Foreground(lipgloss.Color("255")).
			Bold(true)

	styleHeading = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	styleViolated = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	styleSatisfied = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))
)

// statusStyles colors tree rows by branch status.
var statusStyles = map[types.BranchStatus]lipgloss.Style{
	types.StatusActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	types.StatusExpanded: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	types.StatusTerminal: lipgloss.NewStyle().Foreground(lipgloss.Color("228")),
	types.StatusPruned:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true),
}

// lineKind identifies the type of a log line for styling.
type lineKind int

const (
	kindText lineKind = iota
	kindOutcome
	kindSummary
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of log line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "explored "):
		return kindSummary
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Cannot simulate"):
		return kindError
	case isRankedLine(line):
		return kindOutcome
	default:
		return kindText
	}
}

// isRankedLine matches "3. #7 depth 2 ..." outcome listings.
func isRankedLine(line string) bool {
	dot := strings.Index(line, ". #")
	if dot <= 0 {
		return false
	}
	for _, r := range line[:dot] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindOutcome:
		return styleOutcome.Render(line)
	case kindSummary:
		return styleSummary.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleText.Render(line)
	}
}

func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
