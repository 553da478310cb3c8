package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logflow/sweep/pkg/analysis"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/tui"
	"github.com/logflow/sweep/pkg/variation"
)

func newVariationsCmd(a *app) *cobra.Command {
	var (
		analysisPath string
		nominalOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "variations",
		Short: "List the variations a run would process",
		Long: `Resolve and list the variation set of an analysis, in processing order.

Examples:
  sweep variations --analysis analysis.yaml
  sweep variations --analysis analysis.yaml --nominal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Analysis.Path
			if cmd.Flags().Changed("analysis") {
				path = analysisPath
			}

			def, err := loadAnalysis(path)
			if err != nil {
				return err
			}

			set, err := variation.Resolve(cmd.Context(), !nominalOnly, analysis.NewCorrections(def))
			if err != nil {
				return sweeperrors.Discovery(err)
			}

			fmt.Fprintf(a.stdout, "  %s: %d variations\n", def.Name, set.Len())
			tui.PrintVariations(a.stdout, set.Names())
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisPath, "analysis", "", "Analysis definition (YAML)")
	cmd.Flags().BoolVar(&nominalOnly, "nominal", false, "Resolve with systematics disabled")

	return cmd
}
