package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/logflow/sweep/internal/model"
	"github.com/logflow/sweep/pkg/analysis"
	"github.com/logflow/sweep/pkg/writer"
)

// Synthetic fields, in column order.
var syntheticFields = []string{"jet_pt", "lep_pt", "met", "eta"}

// generator produces reproducible synthetic collision-like events.
type generator struct {
	rng          *rand.Rand
	eventsPerRun int64
}

func newGenerator(seed uint64, eventsPerRun int64) *generator {
	if eventsPerRun <= 0 {
		eventsPerRun = 1000
	}
	return &generator{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		eventsPerRun: eventsPerRun,
	}
}

// fill overwrites ev with event i.
func (g *generator) fill(ev *model.Event, i int64) {
	ev.Reset()
	ev.Index = i
	ev.Run = 1 + i/g.eventsPerRun
	ev.Number = i%g.eventsPerRun + 1
	ev.Weight = 0.5 + g.rng.Float64()

	ev.Fields["jet_pt"] = 20 + g.rng.ExpFloat64()*40
	ev.Fields["lep_pt"] = 10 + g.rng.ExpFloat64()*25
	ev.Fields["met"] = g.rng.ExpFloat64() * 30
	ev.Fields["eta"] = math.Max(-2.5, math.Min(2.5, g.rng.NormFloat64()*1.2))
}

// writeEvents writes n synthetic events to path, in the format of its extension.
func writeEvents(ctx context.Context, path string, n int64, seed uint64, cfg writer.Config) (int64, error) {
	cfg.Fields = syntheticFields

	w, err := writer.Create(path, cfg)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	gen := newGenerator(seed, 1000)
	ev := model.NewEvent()
	for i := int64(0); i < n; i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				w.Close()
				return w.RowsWritten(), err
			}
		}
		gen.fill(ev, i)
		if err := w.WriteEvent(ctx, ev); err != nil {
			w.Close()
			return w.RowsWritten(), fmt.Errorf("write event %d: %w", i, err)
		}
	}

	if err := w.Close(); err != nil {
		return w.RowsWritten(), fmt.Errorf("close %s: %w", path, err)
	}
	return w.RowsWritten(), nil
}

func ptr(v float64) *float64 { return &v }

// demoDefinition is an analysis over the synthetic fields.
func demoDefinition() *analysis.Definition {
	return &analysis.Definition{
		Name: "dilepton-demo",
		Systematics: []analysis.Systematic{
			{Name: "JES", Field: "jet_pt", Shift: 0.03},
			{Name: "LES", Field: "lep_pt", Shift: 0.01},
			{Name: "MET", Field: "met", Shift: 0.05},
		},
		Derived: []analysis.Derived{
			{Name: "ht", Op: analysis.OpSum, Of: []string{"jet_pt", "lep_pt"}},
			{Name: "met_over_ht", Op: analysis.OpRatio, Of: []string{"met", "ht"}},
		},
		Selection: []analysis.Cut{
			{Field: "jet_pt", Min: ptr(30)},
			{Field: "ht", Min: ptr(80)},
			{Field: "met_over_ht", Max: ptr(1)},
		},
	}
}

func writeDefinition(path string, def *analysis.Definition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		output      string
		numEvents   int64
		seed        uint64
		compression string
		batchSize   int
		analysisOut string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic events for testing and benchmarks",
		Long: `Generate reproducible synthetic events with jet_pt, lep_pt, met and eta
fields. The output format follows the extension.

Examples:
  sweep generate -o events.parquet -n 1000000
  sweep generate -o events.jsonl -n 1000 --analysis-out analysis.yaml
  sweep generate -o events.duckdb --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := writer.DefaultConfig()
			cfg.Compression = writer.ParseCompression(compression)
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}

			start := time.Now()
			rows, err := writeEvents(cmd.Context(), output, numEvents, seed, cfg)
			if err != nil {
				return err
			}
			a.logger.Info("events generated", "path", output, "events", rows, "elapsed", time.Since(start))

			if analysisOut != "" {
				if err := writeDefinition(analysisOut, demoDefinition()); err != nil {
					return fmt.Errorf("write analysis definition: %w", err)
				}
				a.logger.Info("analysis definition written", "path", analysisOut)
			}

			fmt.Fprintf(a.stdout, "  %s: %s events\n", output, formatCount(rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (required)")
	cmd.Flags().Int64VarP(&numEvents, "num-events", "n", 10000, "Number of events")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&compression, "compression", "snappy", "Parquet compression (none, snappy, gzip, zstd)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Events per batch (default 8192)")
	cmd.Flags().StringVar(&analysisOut, "analysis-out", "", "Also write a matching analysis definition")

	cmd.MarkFlagRequired("output")

	return cmd
}

func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
