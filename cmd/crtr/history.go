package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"reel-recipe-go/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var stats bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if stats {
				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(counts))
				for _, state := range []string{"persisted", "aborted", "failed"} {
					rows = append(rows, []string{state, strconv.Itoa(counts[state])})
				}
				fmt.Fprintln(out, renderTable([]string{"STATE", "RUNS"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			}

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No conversions recorded yet.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"STARTED", "ID", "STATE", "STAGE", "DURATION", "OUTPUT"},
				historyRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show run counts by final state")
	return cmd
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		output := r.ArtifactPath
		if output == "" {
			output = r.AbortReason
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Identifier,
			r.State,
			r.AbortStage,
			r.Duration().Round(100 * time.Millisecond).String(),
			output,
		})
	}
	return rows
}
