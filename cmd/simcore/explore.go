package main

import (
	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/tui"
)

func exploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Full-screen branch explorer",
		Args:  cobra.NoArgs,
		RunE:  runExplore,
	}
}

func runExplore(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(cmd.Context(), a.engine(a.pack, a.pack), a.pack, a.cfg.Simulation, a.constraints)
}
