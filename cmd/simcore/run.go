package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/engine/save"
	"github.com/nathoo/simcore/types"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Simulate one scenario and print the ranked outcomes",
		Example: `  simcore run "Alice walks into a dark forest feeling anxious"
  simcore run --avoid "afraid mood 0.5" --policy merge --format yaml "Bob walks in the rain"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().String("format", "text", "text, json, yaml or full (JSON of the whole tree)")
	cmd.Flags().Int("top", 5, "number of outcomes to print (0 = all)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	eng := a.engine(a.pack, a.pack)
	res, err := eng.Run(cmd.Context(), strings.Join(args, " "), a.constraints, a.cfg.Simulation)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	top, _ := cmd.Flags().GetInt("top")
	out := cmd.OutOrStdout()

	switch format {
	case "text":
		printOutcomes(out, res, top)
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(save.Summarize(res, top))
	case "yaml":
		data, err := save.ExportYAML(res, top)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "full":
		data, err := save.Save(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	default:
		return fmt.Errorf("unknown format %q (want text, json, yaml or full)", format)
	}
}

func printOutcomes(out io.Writer, res *types.SimulationResult, top int) {
	st := res.Stats
	term := res.Termination.Reason
	if res.Termination.ByBudget {
		term += " (budget)"
	}
	fmt.Fprintf(out, "Explored %d branches, pruned %d (%.0f%%), %d rounds: %s\n",
		st.Explored, st.Pruned, st.PruningEfficiency*100, st.Rounds, term)
	if len(res.Constraints) > 0 {
		ids := make([]string, 0, len(res.Constraints))
		for _, c := range res.Constraints {
			ids = append(ids, c.ID)
		}
		fmt.Fprintf(out, "Constraints: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintln(out)

	for i, id := range res.Ranked {
		if top > 0 && i == top {
			break
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, narrate.Outcome(res.Branches, id))
		b := res.Branches[id]
		if len(b.Violated) > 0 {
			fmt.Fprintf(out, "   violates: %s\n", strings.Join(b.Violated, ", "))
		}
		if len(b.Satisfied) > 0 {
			fmt.Fprintf(out, "   satisfies: %s\n", strings.Join(b.Satisfied, ", "))
		}
	}
}
