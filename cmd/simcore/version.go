package main

import "github.com/spf13/cobra"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print simcore version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("simcore %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
