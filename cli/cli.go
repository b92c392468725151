// Package cli provides the line-oriented simulation REPL: scenario input,
// outcome listings and meta-command dispatch.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/save"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/engine/transition"
	"github.com/nathoo/simcore/types"
)

// Catalog lists the rules the REPL can show with /rules.
type Catalog interface {
	All() []types.Rule
}

// CLI handles terminal interaction with the user.
type CLI struct {
	Engine      *engine.Engine
	Catalog     Catalog
	Config      types.Config
	Constraints []types.Constraint
	In          io.Reader
	Out         io.Writer
	SaveDir     string
	Top         int // outcomes listed after each run
	Trace       bool
	EchoInput   bool // echo each input line after the prompt (for script playback)

	last      *types.SimulationResult
	lastInput string // for "again"/"g" repeat
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, catalog Catalog, cfg types.Config, constraints []types.Constraint) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Engine:      eng,
		Catalog:     catalog,
		Config:      cfg,
		Constraints: constraints,
		In:          os.Stdin,
		Out:         os.Stdout,
		SaveDir:     filepath.Join(home, ".simcore", "saves"),
		Top:         5,
	}
}

// Run starts the loop: prompt, read a scenario or meta-command, simulate,
// print. It returns when input ends, /quit is entered or ctx is done.
func (c *CLI) Run(ctx context.Context) {
	c.printLine("Describe a scenario to simulate it. Type /help for commands.")

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastInput == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastInput
		} else {
			c.lastInput = input
		}

		c.simulate(ctx, input)
	}
}

func (c *CLI) simulate(ctx context.Context, input string) {
	res, err := c.Engine.Run(ctx, input, c.Constraints, c.Config)
	if err != nil {
		c.printSystem(fmt.Sprintf("Cannot simulate: %v", err))
		return
	}
	c.last = res
	c.printResult(res)
	if c.Trace {
		c.printTrace(res)
	}
}

// handleMeta dispatches meta-commands. Returns true if the REPL should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.Join(parts[1:], " ")

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/avoid", "/achieve":
		c.cmdConstraint(strings.TrimPrefix(cmd, "/") + " " + arg)

	case "/constraints":
		c.cmdConstraints()

	case "/clear":
		c.Constraints = nil
		c.printSystem("Constraints cleared.")

	case "/policy":
		c.cmdPolicy(arg)

	case "/depth":
		c.cmdDepth(arg)

	case "/seed":
		c.cmdSeed(arg)

	case "/show":
		c.cmdShow(arg)

	case "/export":
		c.cmdExport()

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/rules":
		c.cmdRules()

	case "/config":
		c.cmdConfig()

	case "/help":
		c.cmdHelp()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdConstraint(directive string) {
	con, err := parser.ParseConstraint(directive)
	if err != nil {
		c.printSystem(err.Error())
		return
	}
	for i, existing := range c.Constraints {
		if existing.ID == con.ID {
			c.Constraints[i] = con
			c.printSystem(fmt.Sprintf("Updated %s (weight %.2f).", con.ID, con.Weight))
			return
		}
	}
	c.Constraints = append(c.Constraints, con)
	c.printSystem(fmt.Sprintf("Added %s (weight %.2f).", con.ID, con.Weight))
}

func (c *CLI) cmdConstraints() {
	if len(c.Constraints) == 0 {
		c.printSystem("No constraints.")
		return
	}
	for _, con := range c.Constraints {
		c.printSystem(fmt.Sprintf("%s: %s %s %.2f", con.ID, con.Kind, describeTarget(con.Target), con.Weight))
	}
}

func describeTarget(p types.Predicate) string {
	subj := p.Subject
	if subj == "" {
		subj = "?x"
	}
	switch p.Type {
	case types.PredProperty:
		return fmt.Sprintf("%s.%s(%s)", subj, p.Kind, state.FormatValue(p.Value))
	case types.PredAny, types.PredAll:
		parts := make([]string, 0, len(p.Inner))
		for _, in := range p.Inner {
			parts = append(parts, describeTarget(in))
		}
		sep := " or "
		if p.Type == types.PredAll {
			sep = " and "
		}
		return strings.Join(parts, sep)
	default:
		return string(p.Type)
	}
}

func (c *CLI) cmdPolicy(name string) {
	if name == "" {
		c.printSystem(fmt.Sprintf("Policy: %s", c.Config.Policy))
		return
	}
	p := types.Policy(name)
	if err := transition.CheckPolicy(p); err != nil {
		c.printSystem(err.Error())
		return
	}
	c.Config.Policy = p
	c.printSystem(fmt.Sprintf("Policy set to %s.", p))
}

func (c *CLI) cmdDepth(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		c.printSystem("Usage: /depth <steps>")
		return
	}
	c.Config.MaxDepth = n
	c.printSystem(fmt.Sprintf("Max depth set to %d.", n))
}

func (c *CLI) cmdSeed(arg string) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		c.printSystem("Usage: /seed <number>")
		return
	}
	c.Config.Seed = n
	c.printSystem(fmt.Sprintf("Seed set to %d.", n))
}

func (c *CLI) cmdShow(arg string) {
	if c.last == nil {
		c.printSystem("Nothing simulated yet.")
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id < 0 || id >= len(c.last.Branches) {
		c.printSystem(fmt.Sprintf("No branch %q. Use an ID from the outcome list.", arg))
		return
	}
	b := c.last.Branches[id]
	c.printLine(fmt.Sprintf("Branch #%d  depth %d  %.1f%%  %s", b.ID, b.Depth, b.Confidence*100, b.Status))
	c.printLine("  " + narrate.Path(c.last.Branches, id))
	if b.EndReason != "" {
		c.printLine("  ended: " + b.EndReason)
	}
	if len(b.Satisfied) > 0 {
		c.printLine("  satisfied: " + strings.Join(b.Satisfied, ", "))
	}
	if len(b.Violated) > 0 {
		c.printLine("  violated: " + strings.Join(b.Violated, ", "))
	}
	for _, line := range narrate.State(b.State) {
		c.printLine("  - " + line)
	}
}

func (c *CLI) cmdExport() {
	if c.last == nil {
		c.printSystem("Nothing simulated yet.")
		return
	}
	data, err := save.ExportYAML(c.last, c.Top)
	if err != nil {
		c.printSystem(fmt.Sprintf("Export failed: %v", err))
		return
	}
	c.print(string(data))
}

func (c *CLI) cmdSave(name string) {
	if c.last == nil {
		c.printSystem("Nothing simulated yet.")
		return
	}
	if name == "" {
		name = "quicksave"
	}

	data, err := save.Save(c.last)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	c.printSystem(fmt.Sprintf("Result saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(c.SaveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	res, err := save.Load(data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	c.last = res
	c.lastInput = res.Input
	c.printSystem(fmt.Sprintf("Result loaded from %s (%d branches).", name, len(res.Branches)))
	c.printResult(res)
}

func (c *CLI) cmdRules() {
	if c.Catalog == nil {
		c.printSystem("No rule catalog.")
		return
	}
	for _, r := range c.Catalog.All() {
		line := fmt.Sprintf("%-16s %.2f", r.ID, r.Confidence)
		if len(r.Tags) > 0 {
			line += "  [" + strings.Join(r.Tags, ", ") + "]"
		}
		c.printLine(line)
	}
}

func (c *CLI) cmdConfig() {
	cfg := engine.Normalize(c.Config)
	c.printSystem(fmt.Sprintf("Policy: %s", cfg.Policy))
	c.printSystem(fmt.Sprintf("Max depth: %d  decay: %.2f  min confidence: %.2f", cfg.MaxDepth, cfg.DecayRate, cfg.MinConfidence))
	c.printSystem(fmt.Sprintf("Active branches: %d  branch budget: %d  step budget: %d", cfg.MaxActiveBranches, cfg.MaxBranches, cfg.MaxSteps))
	c.printSystem(fmt.Sprintf("Seed: %d", cfg.Seed))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"Simulation:",
		"  <scenario text>         Simulate, e.g. \"Alice walks into a dark forest feeling anxious\"",
		"  again (g)               Re-run the last scenario",
		"  /avoid <target> [w]     Add an avoid constraint, e.g. /avoid Location(rain) 0.5",
		"  /achieve <target> [w]   Add an achieve constraint, e.g. /achieve calm mood",
		"  /constraints            List constraints",
		"  /clear                  Remove all constraints",
		"  /policy [name]          all_branches, highest_confidence or merge",
		"  /depth <n>              Set the look-ahead depth",
		"  /seed <n>               Set the sampling seed",
		"",
		"Results:",
		"  /show <id>              Show one branch in detail",
		"  /export                 Print the ranked outcomes as YAML",
		"  /save [name]            Save the last result (default: quicksave)",
		"  /load [name]            Load a saved result (default: quicksave)",
		"  /trace                  Toggle run event output",
		"",
		"System:",
		"  /rules                  List loaded rules",
		"  /config                 Show run settings",
		"  /help                   Show this help",
		"  /quit                   Exit",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printResult(res *types.SimulationResult) {
	st := res.Stats
	term := res.Termination.Reason
	if res.Termination.ByBudget {
		term += ", budget"
	}
	c.printSystem(fmt.Sprintf("explored %d, pruned %d, %s", st.Explored, st.Pruned, term))
	for i, id := range res.Ranked {
		if c.Top > 0 && i == c.Top {
			break
		}
		c.printLine(fmt.Sprintf("%d. %s", i+1, narrate.Outcome(res.Branches, id)))
	}
}

func (c *CLI) printTrace(res *types.SimulationResult) {
	c.printSystem(fmt.Sprintf("[trace] Events: %d", len(res.Events)))
	for _, e := range res.Events {
		c.printSystem(fmt.Sprintf("[trace]   %s %v", e.Type, e.Data))
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
