// Package tui provides a Bubble Tea branch explorer for the simulation
// engine.
package tui

import "strings"

// recallKind tells scenario lines apart from meta commands so the
// explorer can list what was simulated.
type recallKind int

const (
	recallScenario recallKind = iota
	recallConstraint
	recallCommand
)

type recalled struct {
	line string
	kind recallKind
}

// History keeps submitted lines for Up/Down recall. Recall is filtered by
// whatever was typed when navigation started, so "/av" then Up walks only
// earlier /avoid directives.
type History struct {
	entries []recalled
	max     int
	cursor  int    // -1 while not navigating
	prefix  string // input at the start of navigation
}

// NewHistory creates a history holding at most max lines.
func NewHistory(max int) *History {
	return &History{max: max, cursor: -1}
}

func kindOf(line string) recallKind {
	switch {
	case strings.HasPrefix(line, "/avoid"), strings.HasPrefix(line, "/achieve"):
		return recallConstraint
	case strings.HasPrefix(line, "/"):
		return recallCommand
	default:
		return recallScenario
	}
}

// Push records a submitted line as the newest entry. An earlier copy of
// the same line is dropped. Repeat requests are not recorded; the line
// they repeat already is.
func (h *History) Push(line string) {
	if line == "again" || line == "g" {
		return
	}
	for i, e := range h.entries {
		if e.line == line {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	h.entries = append(h.entries, recalled{line: line, kind: kindOf(line)})
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Prev steps to the next older line starting with the text typed when
// navigation began, stopping at the oldest match.
func (h *History) Prev(typed string) (string, bool) {
	if h.cursor == -1 {
		h.prefix = typed
		h.cursor = len(h.entries)
	}
	for i := h.cursor - 1; i >= 0; i-- {
		if strings.HasPrefix(h.entries[i].line, h.prefix) {
			h.cursor = i
			return h.entries[i].line, true
		}
	}
	if h.cursor < len(h.entries) {
		return h.entries[h.cursor].line, true
	}
	h.cursor = -1
	return "", false
}

// Next steps to a newer match. Past the newest it ends navigation and
// returns the text that was typed before it started.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	for i := h.cursor + 1; i < len(h.entries); i++ {
		if strings.HasPrefix(h.entries[i].line, h.prefix) {
			h.cursor = i
			return h.entries[i].line, true
		}
	}
	typed := h.prefix
	h.ResetCursor()
	return typed, false
}

// ResetCursor ends navigation.
func (h *History) ResetCursor() {
	h.cursor = -1
	h.prefix = ""
}

// Recent returns up to n lines of kind, newest first.
func (h *History) Recent(kind recallKind, n int) []string {
	var out []string
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		if h.entries[i].kind == kind {
			out = append(out, h.entries[i].line)
		}
	}
	return out
}
