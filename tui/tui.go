package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/save"
	"github.com/nathoo/simcore/engine/transition"
	"github.com/nathoo/simcore/types"
)

// Catalog lists the rules shown by /rules.
type Catalog interface {
	All() []types.Rule
}

// rawLine stores an unstyled log line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed user input
	isSystem bool // true for system messages
}

type viewMode int

const (
	modeLog viewMode = iota
	modeTree
)

type keyMap struct {
	Toggle key.Binding
	Next   key.Binding
	Prev   key.Binding
	Parent key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "log/tree")),
	Next:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next branch")),
	Prev:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "previous branch")),
	Parent: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "parent branch")),
}

// Model is the Bubble Tea model for the branch explorer.
type Model struct {
	ctx         context.Context
	engine      *engine.Engine
	catalog     Catalog
	cfg         types.Config
	constraints []types.Constraint

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated log lines (unstyled, for re-wrapping)

	result   *types.SimulationResult
	selected int
	mode     viewMode

	width     int
	height    int
	ready     bool
	trace     bool
	running   bool
	quitting  bool
	lastInput string
	saveDir   string
	top       int
}

// outputMsg carries lines into the log.
type outputMsg struct {
	input    string // echoed user input
	lines    []string
	isSystem bool // true for meta-command output
}

// simulationMsg carries a finished run back into the Update loop.
type simulationMsg struct {
	input string
	res   *types.SimulationResult
	err   error
}

// New creates an explorer model wired to the given engine.
func New(ctx context.Context, eng *engine.Engine, catalog Catalog, cfg types.Config, constraints []types.Constraint) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Alice walks into a dark forest feeling anxious"
	ti.Focus()
	ti.CharLimit = 512
	ti.PromptStyle = styleInputPrompt

	home, _ := os.UserHomeDir()
	return Model{
		ctx:         ctx,
		engine:      eng,
		catalog:     catalog,
		cfg:         engine.Normalize(cfg),
		constraints: constraints,
		input:       ti,
		history:     NewHistory(100),
		saveDir:     filepath.Join(home, ".simcore", "saves"),
		top:         10,
	}
}

// Run starts the Bubble Tea program.
func Run(ctx context.Context, eng *engine.Engine, catalog Catalog, cfg types.Config, constraints []types.Constraint) error {
	m := New(ctx, eng, catalog, cfg, constraints)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init blinks the cursor and prints the greeting.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return outputMsg{lines: []string{
			"simcore branch explorer",
			"Describe a scenario and press Enter. Type /help for commands.",
		}}
	})
}

// Update handles messages (key presses, window resize, run results).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case msg.String() == "enter":
			return m.handleEnter()

		case key.Matches(msg, keys.Toggle):
			if m.mode == modeLog && m.result != nil {
				m.mode = modeTree
			} else {
				m.mode = modeLog
			}
			m.refreshViewport()
			return m, nil

		case key.Matches(msg, keys.Next):
			m.moveSelection(1)
			return m, nil

		case key.Matches(msg, keys.Prev):
			m.moveSelection(-1)
			return m, nil

		case key.Matches(msg, keys.Parent):
			if m.result != nil {
				if p := m.result.Branches[m.selected].Parent; p != types.NoParent {
					m.selectBranch(p)
				}
			}
			return m, nil

		case msg.String() == "up":
			if prev, ok := m.history.Prev(m.input.Value()); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case msg.String() == "down":
			next, _ := m.history.Next()
			m.input.SetValue(next)
			m.input.CursorEnd()
			return m, nil

		case msg.String() == "pgup", msg.String() == "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendOutput(msg)

	case simulationMsg:
		m = m.finishRun(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(outputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastInput == "" {
			m = m.appendOutput(outputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastInput
	} else {
		m.lastInput = input
	}

	if m.running {
		m = m.appendOutput(outputMsg{input: input, lines: []string{"A simulation is already running."}, isSystem: true})
		return m, nil
	}

	m.running = true
	m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	m.refreshViewport()
	return m, m.simulate(input)
}

// simulate runs the engine off the Update loop.
func (m Model) simulate(input string) tea.Cmd {
	ctx, eng, cfg := m.ctx, m.engine, m.cfg
	cs := append([]types.Constraint(nil), m.constraints...)
	if ctx == nil {
		ctx = context.Background()
	}
	return func() tea.Msg {
		res, err := eng.Run(ctx, input, cs, cfg)
		return simulationMsg{input: input, res: res, err: err}
	}
}

func (m Model) finishRun(msg simulationMsg) Model {
	m.running = false
	if msg.err != nil {
		return m.appendOutput(outputMsg{lines: []string{fmt.Sprintf("Cannot simulate: %v", msg.err)}})
	}
	m.result = msg.res
	m.selected = 0
	if len(msg.res.Ranked) > 0 {
		m.selected = msg.res.Ranked[0]
	}
	lines := m.outcomeLines(msg.res)
	if m.trace {
		lines = append(lines, formatTrace(msg.res)...)
	}
	return m.appendOutput(outputMsg{lines: lines})
}

func (m Model) outcomeLines(res *types.SimulationResult) []string {
	term := res.Termination.Reason
	if res.Termination.ByBudget {
		term += ", budget"
	}
	lines := []string{fmt.Sprintf("explored %d, pruned %d, %s", res.Stats.Explored, res.Stats.Pruned, term)}
	for i, id := range res.Ranked {
		if i == m.top {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, narrate.Outcome(res.Branches, id)))
	}
	return lines
}

// moveSelection steps through the tree in display order.
func (m *Model) moveSelection(delta int) {
	if m.result == nil {
		return
	}
	rows := flatten(m.result.Branches)
	idx := 0
	for i, r := range rows {
		if r.id == m.selected {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(rows) {
		idx = len(rows) - 1
	}
	m.selectBranch(rows[idx].id)
}

func (m *Model) selectBranch(id int) {
	m.selected = id
	m.mode = modeTree
	m.refreshViewport()
}

// appendOutput adds lines to the log and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between entries.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport renders the current view at the current width and
// updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	if m.mode == modeTree && m.result != nil {
		m.refreshTree()
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, styleUserInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// refreshTree shows the branch tree followed by the selected branch's
// details, scrolled so the selection is visible.
func (m *Model) refreshTree() {
	lines := renderTree(m.result, m.selected)
	lines = append(lines, "")
	lines = append(lines, renderDetail(m.result, m.selected)...)
	m.viewport.SetContent(strings.Join(lines, "\n"))

	row := 0
	for i, r := range flatten(m.result.Branches) {
		if r.id == m.selected {
			row = i
			break
		}
	}
	if row < m.viewport.YOffset || row >= m.viewport.YOffset+m.viewport.Height {
		off := row - m.viewport.Height/2
		if off < 0 {
			off = 0
		}
		m.viewport.SetYOffset(off)
	}
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.Join(parts[1:], " ")

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/avoid", "/achieve":
		return m.cmdConstraint(strings.TrimPrefix(cmd, "/") + " " + arg), false

	case "/constraints":
		return m.cmdConstraints(), false

	case "/clear":
		m.constraints = nil
		return []string{"Constraints cleared."}, false

	case "/recent":
		return m.cmdRecent(), false

	case "/policy":
		return m.cmdPolicy(arg), false

	case "/depth":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return []string{"Usage: /depth <steps>"}, false
		}
		m.cfg.MaxDepth = n
		return []string{fmt.Sprintf("Max depth set to %d.", n)}, false

	case "/show":
		return m.cmdShow(arg), false

	case "/tree":
		if m.result == nil {
			return []string{"Nothing simulated yet."}, false
		}
		m.mode = modeTree
		return []string{"Tab returns to the log."}, false

	case "/export":
		return m.cmdExport(), false

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/rules":
		return m.cmdRules(), false

	case "/help":
		return m.cmdHelp(), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdConstraint(directive string) []string {
	c, err := parser.ParseConstraint(directive)
	if err != nil {
		return []string{err.Error()}
	}
	for i, existing := range m.constraints {
		if existing.ID == c.ID {
			m.constraints[i] = c
			return []string{fmt.Sprintf("Updated %s (weight %.2f).", c.ID, c.Weight)}
		}
	}
	m.constraints = append(m.constraints, c)
	return []string{fmt.Sprintf("Added %s (weight %.2f).", c.ID, c.Weight)}
}

func (m *Model) cmdConstraints() []string {
	if len(m.constraints) == 0 {
		return []string{"No constraints."}
	}
	out := make([]string, 0, len(m.constraints))
	for _, c := range m.constraints {
		out = append(out, fmt.Sprintf("%s: %s, weight %.2f", c.ID, c.Kind, c.Weight))
	}
	return out
}

func (m *Model) cmdPolicy(name string) []string {
	if name == "" {
		return []string{fmt.Sprintf("Policy: %s", m.cfg.Policy)}
	}
	p := types.Policy(name)
	if err := transition.CheckPolicy(p); err != nil {
		return []string{err.Error()}
	}
	m.cfg.Policy = p
	return []string{fmt.Sprintf("Policy set to %s.", p)}
}

func (m *Model) cmdShow(arg string) []string {
	if m.result == nil {
		return []string{"Nothing simulated yet."}
	}
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id < 0 || id >= len(m.result.Branches) {
		return []string{fmt.Sprintf("No branch %q.", arg)}
	}
	m.selected = id
	m.mode = modeTree
	return []string{fmt.Sprintf("Showing branch #%d.", id)}
}

func (m *Model) cmdExport() []string {
	if m.result == nil {
		return []string{"Nothing simulated yet."}
	}
	data, err := save.ExportYAML(m.result, m.top)
	if err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func (m *Model) cmdSave(name string) []string {
	if m.result == nil {
		return []string{"Nothing simulated yet."}
	}
	if name == "" {
		name = "quicksave"
	}

	data, err := save.Save(m.result)
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Result saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(m.saveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	res, err := save.Load(data)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	m.result = res
	m.lastInput = res.Input
	m.selected = 0
	if len(res.Ranked) > 0 {
		m.selected = res.Ranked[0]
	}
	output := []string{fmt.Sprintf("Result loaded from %s (%d branches).", name, len(res.Branches))}
	return append(output, m.outcomeLines(res)...)
}

func (m *Model) cmdRules() []string {
	if m.catalog == nil {
		return []string{"No rule catalog."}
	}
	var out []string
	for _, r := range m.catalog.All() {
		line := fmt.Sprintf("%s %.2f", r.ID, r.Confidence)
		if len(r.Tags) > 0 {
			line += " [" + strings.Join(r.Tags, ", ") + "]"
		}
		out = append(out, line)
	}
	return out
}

func (m *Model) cmdHelp() []string {
	return []string{
		"Simulation:",
		"  <scenario text>        Simulate and list the ranked outcomes",
		"  again (g)              Re-run the last scenario",
		"  /avoid <target> [w]    Add an avoid constraint",
		"  /achieve <target> [w]  Add an achieve constraint",
		"  /constraints, /clear   List or remove constraints",
		"  /recent                Recent scenarios and constraint directives",
		"  /policy [name]         all_branches, highest_confidence or merge",
		"  /depth <n>             Set the look-ahead depth",
		"",
		"Exploring:",
		"  /tree                  Show the branch tree",
		"  /show <id>             Select a branch",
		"  /export                YAML summary of the outcomes",
		"  /save [name]           Save the result (default: quicksave)",
		"  /load [name]           Load a result (default: quicksave)",
		"  /rules                 List loaded rules",
		"  /trace                 Toggle run event output",
		"  /help, /quit",
		"",
		fmt.Sprintf("Keys: %s %s, %s/%s move, %s %s, PgUp/PgDn scroll, Up/Down history (filtered by typed text)",
			keys.Toggle.Help().Key, keys.Toggle.Help().Desc,
			keys.Next.Help().Key, keys.Prev.Help().Key,
			keys.Parent.Help().Key, keys.Parent.Help().Desc),
	}
}

// cmdRecent lists what was simulated and constrained this session, so a
// line can be recalled by typing its start and pressing Up.
func (m *Model) cmdRecent() []string {
	scenarios := m.history.Recent(recallScenario, 5)
	directives := m.history.Recent(recallConstraint, 5)
	if len(scenarios) == 0 && len(directives) == 0 {
		return []string{"Nothing entered yet."}
	}
	var lines []string
	if len(scenarios) > 0 {
		lines = append(lines, "Scenarios:")
		for _, l := range scenarios {
			lines = append(lines, "  "+l)
		}
	}
	if len(directives) > 0 {
		lines = append(lines, "Constraints:")
		for _, l := range directives {
			lines = append(lines, "  "+l)
		}
	}
	return lines
}

func formatTrace(res *types.SimulationResult) []string {
	lines := []string{fmt.Sprintf("[trace] Events: %d", len(res.Events))}
	for _, e := range res.Events {
		lines = append(lines, fmt.Sprintf("[trace]   %s %v", e.Type, e.Data))
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
