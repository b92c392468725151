// Command simcore simulates how described scenarios may unfold.
//
// Usage: simcore [flags] [command]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simcore",
		Short: "Scenario simulation engine",
		Long: `simcore parses a plain-English scenario into a world state and explores
how it may evolve under a pack of causal rules, ranking the outcomes by
confidence.

Without a command it opens the branch explorer, or the plain REPL when
stdout is not a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal() {
				return runExplore(cmd, args)
			}
			return runRepl(cmd, args)
		},
	}
	root.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	root.SetVersionTemplate("simcore {{.Version}}\n")

	// Global flags
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./simcore.yaml or ~/.simcore/simcore.yaml)")
	pf.String("rules", "", "rule pack directory (default: built-in forest pack)")
	pf.String("log-level", "", "trace, debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	pf.String("memory", "", "episode store: none, jsonl, sqlite or postgres")
	pf.String("memory-path", "", "JSONL file or SQLite database for the episode store")
	addSimulationFlags(root)

	root.AddCommand(
		runCmd(),
		replCmd(),
		exploreCmd(),
		serveCmd(),
		historyCmd(),
		validateCmd(),
		versionCmd(),
	)
	return root
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
