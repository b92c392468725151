package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/types"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [episode-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 10, "number of episodes to list (0 = all)")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store == nil {
		return errors.New("episode memory is disabled; set memory.driver or pass --memory")
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if len(args) == 1 {
		ep, err := a.store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return enc.Encode(ep)
		}
		printEpisode(cmd, ep)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	eps, err := a.store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if jsonOut {
		if eps == nil {
			eps = []types.Episode{}
		}
		return enc.Encode(eps)
	}
	if len(eps) == 0 {
		fmt.Fprintln(out, "No episodes recorded.")
		return nil
	}
	for _, ep := range eps {
		top := "no outcomes"
		if len(ep.Outcomes) > 0 {
			top = ep.Outcomes[0].Summary
		}
		fmt.Fprintf(out, "%s  %s  %s\n    -> %s\n",
			ep.RecordedAt.Local().Format("2006-01-02 15:04:05"), shortID(ep.ID), ep.Input, top)
	}
	return nil
}

func printEpisode(cmd *cobra.Command, ep types.Episode) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Episode %s\n", ep.ID)
	fmt.Fprintf(out, "Recorded: %s\n", ep.RecordedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Input:    %s\n", ep.Input)
	fmt.Fprintf(out, "Ended:    %s (explored %d, pruned %d, %s)\n",
		ep.Termination.Reason, ep.Stats.Explored, ep.Stats.Pruned, ep.Stats.Elapsed)
	for i, o := range ep.Outcomes {
		fmt.Fprintf(out, "%d. #%d depth %d  %.1f%%  %s\n", i+1, o.BranchID, o.Depth, o.Confidence*100, o.Summary)
		if len(o.Rules) > 0 {
			fmt.Fprintf(out, "   rules: %s\n", strings.Join(o.Rules, " > "))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
