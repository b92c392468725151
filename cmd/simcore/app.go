package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/config"
	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/loader"
	"github.com/nathoo/simcore/logging"
	"github.com/nathoo/simcore/memory"
	"github.com/nathoo/simcore/packs"
	"github.com/nathoo/simcore/types"
)

// app is everything a command needs: resolved config, logger, rule pack,
// episode store and the run constraints.
type app struct {
	cfg         *config.Config
	log         *slog.Logger
	pack        *loader.Pack
	store       memory.Store
	constraints []types.Constraint
	logFile     *os.File
}

// newApp loads config, applies flag overrides and opens the pack and the
// episode store. quiet discards log output unless a log file is set, for
// full-screen commands.
func newApp(cmd *cobra.Command, quiet bool) (*app, error) {
	cfg, err := config.Load(stringFlag(cmd, "config"))
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if err := a.openLog(cmd.ErrOrStderr(), quiet); err != nil {
		return nil, err
	}

	a.pack, err = loadPack(cfg.Rules.Dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	for _, w := range a.pack.Warnings {
		a.log.Warn("rule pack", "pack", a.pack.Name, "warning", w)
	}
	a.log.Debug("rule pack loaded", "pack", a.pack.Name, "rules", len(a.pack.All()))

	a.constraints = a.pack.Constraints()
	for _, verb := range []string{"avoid", "achieve"} {
		for _, target := range stringArrayFlag(cmd, verb) {
			c, err := parser.ParseConstraint(verb + " " + target)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.constraints = append(a.constraints, c)
		}
	}

	a.store, err = memory.Open(cmd.Context(), cfg.Memory)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening episode store: %w", err)
	}
	return a, nil
}

func (a *app) openLog(stderr io.Writer, quiet bool) error {
	lc := a.cfg.Logging
	switch {
	case lc.File != "":
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		a.log = logging.NewLogger(lc.Level, lc.Format, f)
	case quiet:
		a.log = logging.Discard()
	default:
		a.log = logging.NewLogger(lc.Level, lc.Format, stderr)
	}
	return nil
}

// engine builds an engine over src, recording episodes when a store is
// configured.
func (a *app) engine(src rules.Source, hints resolve.HintSource) *engine.Engine {
	opts := []engine.Option{engine.WithHints(hints), engine.WithLogger(a.log)}
	if a.store != nil {
		opts = append(opts, engine.WithEpisodes(a.store))
	}
	return engine.New(src, opts...)
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing episode store", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// loadPack reads dir, or the built-in pack when dir is empty.
func loadPack(dir string) (*loader.Pack, error) {
	if dir == "" {
		return packs.Load(packs.Builtin)
	}
	return loader.LoadDir(dir)
}

func addSimulationFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.Int("depth", 0, "maximum look-ahead depth")
	pf.String("policy", "", "all_branches, highest_confidence or merge")
	pf.Int("max-active", 0, "branches kept on the frontier after each round")
	pf.Int("max-children", 0, "children kept per branch (0 = no cap)")
	pf.Float64("min-confidence", 0, "prune branches below this confidence")
	pf.Int64("seed", 0, "seed for sampled child selection (switches sampling to seeded)")
	pf.Duration("timeout", 0, "wall-clock budget per run")
	pf.StringArray("avoid", nil, "avoid constraint such as 'Location(rain) 0.5' (repeatable)")
	pf.StringArray("achieve", nil, "achieve constraint such as 'calm mood' (repeatable)")
}

// applyFlags overrides config values with the flags set on this
// invocation.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("rules") {
		cfg.Rules.Dir, _ = f.GetString("rules")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Logging.Format, _ = f.GetString("log-format")
	}
	if f.Changed("memory") {
		cfg.Memory.Driver, _ = f.GetString("memory")
	}
	if f.Changed("memory-path") {
		cfg.Memory.Path, _ = f.GetString("memory-path")
	}

	sim := &cfg.Simulation
	if f.Changed("depth") {
		sim.MaxDepth, _ = f.GetInt("depth")
	}
	if f.Changed("policy") {
		p, _ := f.GetString("policy")
		sim.Policy = types.Policy(p)
	}
	if f.Changed("max-active") {
		sim.MaxActiveBranches, _ = f.GetInt("max-active")
	}
	if f.Changed("max-children") {
		sim.MaxChildren, _ = f.GetInt("max-children")
	}
	if f.Changed("min-confidence") {
		sim.MinConfidence, _ = f.GetFloat64("min-confidence")
	}
	if f.Changed("seed") {
		sim.Seed, _ = f.GetInt64("seed")
		sim.Sampling = types.SampleSeeded
	}
	if f.Changed("timeout") {
		sim.Timeout, _ = f.GetDuration("timeout")
	}
	return cfg.Validate()
}

// Flag lookups that tolerate commands which do not define the flag, since
// the root command falls through to the explore and repl runners.

func stringFlag(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func boolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func stringArrayFlag(cmd *cobra.Command, name string) []string {
	if cmd.Flags().Lookup(name) == nil {
		return nil
	}
	v, _ := cmd.Flags().GetStringArray(name)
	return v
}
