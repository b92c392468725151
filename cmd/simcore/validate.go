package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/config"
	"github.com/nathoo/simcore/loader"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pack-dir]",
		Short: "Load a rule pack and report problems",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := stringFlag(cmd, "rules")
	switch {
	case len(args) == 1:
		dir = args[0]
	case !cmd.Flags().Changed("rules"):
		cfg, err := config.Load(stringFlag(cmd, "config"))
		if err != nil {
			return err
		}
		dir = cfg.Rules.Dir
	}
	out := cmd.OutOrStdout()

	pack, err := loadPack(dir)
	if err != nil {
		var verr *loader.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		fmt.Fprintf(out, "Errors (%d):\n", len(verr.Errors))
		for _, e := range verr.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
		printWarnings(cmd, verr.Warnings)
		return fmt.Errorf("rule pack has errors")
	}

	fmt.Fprintf(out, "Pack %s: %d rules, %d hints, %d constraints.\n",
		pack.Name, len(pack.All()), len(pack.Hints()), len(pack.Constraints()))
	printWarnings(cmd, pack.Warnings)
	return nil
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Warnings (%d):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  - %s\n", w)
	}
}
