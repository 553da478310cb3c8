package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/state"
	"github.com/logflow/sweep/pkg/tui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		show    string
		stats   bool
		cleanup bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the local history database.

Examples:
  sweep history
  sweep history -n 50
  sweep history --show 0b6f3c2e-...
  sweep history --stats
  sweep history --cleanup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				return sweeperrors.Configuration("history.enabled", "run history is disabled")
			}

			store, err := state.NewStore(a.cfg.History.Database)
			if err != nil {
				return sweeperrors.Backend(err, "history")
			}
			defer store.Close()

			ctx := cmd.Context()
			switch {
			case show != "":
				sum, err := store.Summary(ctx, show)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("no run %s in history", show)
				}
				if err != nil {
					return sweeperrors.Backend(err, "history")
				}
				data, err := sum.YAML()
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err

			case stats:
				st, err := store.Stats(ctx)
				if err != nil {
					return sweeperrors.Backend(err, "history")
				}
				fmt.Fprintf(a.stdout, "  Runs:       %d (%d completed, %d failed)\n", st.Total, st.Completed, st.Failed)
				fmt.Fprintf(a.stdout, "  Events:     %s processed\n", formatCount(st.EventsProcessed))
				fmt.Fprintf(a.stdout, "  Mean rate:  %s events/sec\n", formatCount(int64(st.MeanRate)))
				return nil

			case cleanup:
				n, err := store.Cleanup(ctx, a.cfg.History.Retention)
				if err != nil {
					return sweeperrors.Backend(err, "history")
				}
				a.logger.Info("history cleaned", "removed", n, "retention", a.cfg.History.Retention)
				fmt.Fprintf(a.stdout, "  removed %d runs older than %v\n", n, a.cfg.History.Retention)
				return nil
			}

			runs, err := store.List(ctx, limit)
			if err != nil {
				return sweeperrors.Backend(err, "history")
			}
			tui.PrintHistory(a.stdout, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVar(&show, "show", "", "Print the full summary of a run")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print aggregate statistics")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove runs older than the configured retention")

	return cmd
}
