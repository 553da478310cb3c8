package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/sweep/pkg/analysis"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/perf"
	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/source"
	"github.com/logflow/sweep/pkg/writer"
)

type benchOptions struct {
	events      int64
	runs        int
	format      string
	systematics bool
	keep        bool
}

// benchRun is the measurement of one replay.
type benchRun struct {
	elapsed     time.Duration
	rate        float64
	invocations int64
	memory      perf.Memory
}

func newBenchmarkCmd(a *app) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure replay throughput on synthetic data",
		Long: `Generate synthetic events, replay them several times through a demo
analysis and report the throughput of each run and their average.

Examples:
  sweep benchmark                          # 100K events, parquet, 3 runs
  sweep benchmark --events 1000000 --runs 5
  sweep benchmark --format duckdb --systematics=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBenchmark(cmd.Context(), opts)
		},
	}

	cmd.Flags().Int64Var(&opts.events, "events", 100000, "Number of events to generate")
	cmd.Flags().IntVar(&opts.runs, "runs", 3, "Number of benchmark runs")
	cmd.Flags().StringVar(&opts.format, "format", "parquet", "Input format (jsonl, arrow, parquet, duckdb, xlsx)")
	cmd.Flags().BoolVar(&opts.systematics, "systematics", true, "Sweep all recommended variations")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep generated files after benchmark")

	return cmd
}

func (a *app) runBenchmark(ctx context.Context, opts *benchOptions) error {
	if opts.runs < 1 {
		return sweeperrors.Configuration("runs", "runs must be at least 1, got %d", opts.runs)
	}
	if opts.events < 0 {
		return sweeperrors.Configuration("events", "events must not be negative, got %d", opts.events)
	}

	out := a.stdout
	fmt.Fprintln(out)
	fmt.Fprintln(out, "SWEEP BENCHMARK")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "SYSTEM:")
	fmt.Fprintf(out, "  OS:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "  CPUs:    %d\n", runtime.NumCPU())
	fmt.Fprintf(out, "  GoMax:   %d\n", runtime.GOMAXPROCS(0))
	fmt.Fprintln(out)

	tempDir, err := os.MkdirTemp("", "sweep-bench-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	if opts.keep {
		fmt.Fprintf(out, "  Data kept in %s\n", tempDir)
	} else {
		defer os.RemoveAll(tempDir)
	}

	input := filepath.Join(tempDir, "events."+opts.format)
	if source.DetectFormat(input) == source.FormatUnknown {
		return sweeperrors.Configuration("format", "unsupported format %q", opts.format)
	}

	genStart := time.Now()
	if _, err := writeEvents(ctx, input, opts.events, 1, writer.DefaultConfig()); err != nil {
		return err
	}
	stat, err := os.Stat(input)
	if err != nil {
		return err
	}

	def := demoDefinition()
	fmt.Fprintln(out, "PARAMETERS:")
	fmt.Fprintf(out, "  Events:      %s\n", formatCount(opts.events))
	fmt.Fprintf(out, "  Format:      %s (%s, generated in %v)\n",
		opts.format, perf.FormatBytes(uint64(stat.Size())), time.Since(genStart).Round(time.Millisecond))
	fmt.Fprintf(out, "  Systematics: %t (%d recommended)\n", opts.systematics, 1+2*len(def.Systematics))
	fmt.Fprintf(out, "  Runs:        %d\n", opts.runs)
	fmt.Fprintln(out)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := make([]benchRun, 0, opts.runs)

	fmt.Fprintln(out, "RESULTS:")
	for i := 0; i < opts.runs; i++ {
		r, err := benchOnce(ctx, input, def, opts.systematics, quiet)
		if err != nil {
			return err
		}
		results = append(results, r)
		fmt.Fprintf(out, "  Run %d: %v  %s events/sec  %s allocated  %d GC\n",
			i+1, r.elapsed.Round(time.Millisecond), formatCount(int64(r.rate)),
			perf.FormatBytes(r.memory.TotalAlloc), r.memory.NumGC)
		a.logger.Debug("benchmark run", "run", i+1, "elapsed", r.elapsed, "events_per_sec", r.rate)
	}

	var total time.Duration
	var rates float64
	for _, r := range results {
		total += r.elapsed
		rates += r.rate
	}
	n := float64(len(results))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "AVERAGE:")
	fmt.Fprintf(out, "  Time:        %v\n", (total / time.Duration(len(results))).Round(time.Millisecond))
	fmt.Fprintf(out, "  Throughput:  %s events/sec\n", formatCount(int64(rates/n)))
	fmt.Fprintf(out, "  Invocations: %s per run\n", formatCount(results[0].invocations))
	fmt.Fprintln(out)
	return nil
}

// benchOnce replays input once and measures the loop alone.
func benchOnce(ctx context.Context, input string, def *analysis.Definition, systematics bool, logger *slog.Logger) (benchRun, error) {
	src, err := source.Open(ctx, input, source.Options{Logger: logger})
	if err != nil {
		return benchRun{}, sweeperrors.Load(err, "open input", -1).WithContext(sweeperrors.KeyPath, input)
	}
	defer src.Close()

	runtime.GC()
	before := perf.ReadMemory()

	loop := replay.New(src, analysis.NewCorrections(def), replay.Options{
		MaxEvents:   replay.AllEvents,
		Systematics: systematics,
		Logger:      logger,
	})
	res, err := loop.Run(ctx)
	if err != nil {
		return benchRun{}, err
	}

	r := benchRun{
		elapsed:     res.Throughput.Elapsed(),
		invocations: res.Invocations,
		memory:      perf.ReadMemory().Since(before),
	}
	r.rate, _ = res.Throughput.Rate()
	return r, nil
}
