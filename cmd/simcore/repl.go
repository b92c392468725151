package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/cli"
	"github.com/nathoo/simcore/loader"
)

func replCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive line-oriented simulator",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
	cmd.Flags().String("script", "", "read input lines from a file and echo them")
	cmd.Flags().Bool("trace", false, "print run events after each simulation")
	cmd.Flags().Bool("watch", false, "reload the rule pack when its files change")
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	live := loader.NewLive(a.pack)
	if a.cfg.Rules.Watch || boolFlag(cmd, "watch") {
		if a.cfg.Rules.Dir == "" {
			return errors.New("watching needs a rules directory (--rules)")
		}
		go func() {
			err := loader.Watch(ctx, a.cfg.Rules.Dir, live, func(p *loader.Pack, err error) {
				if err != nil {
					a.log.Warn("rule pack reload failed", "error", err)
					return
				}
				a.log.Info("rule pack reloaded", "pack", p.Name, "rules", len(p.All()))
			})
			if err != nil && ctx.Err() == nil {
				a.log.Error("watching rule pack", "error", err)
			}
		}()
	}

	c := cli.New(a.engine(live, live), live, a.cfg.Simulation, a.constraints)
	c.In = cmd.InOrStdin()
	c.Out = cmd.OutOrStdout()
	c.Trace = boolFlag(cmd, "trace")

	// Script mode: read the file and echo each line.
	if script := stringFlag(cmd, "script"); script != "" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
	}

	c.Run(ctx)
	return nil
}
