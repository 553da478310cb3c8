package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/logflow/sweep/pkg/analysis"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/perf"
	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/report"
	"github.com/logflow/sweep/pkg/source"
	"github.com/logflow/sweep/pkg/state"
	s3store "github.com/logflow/sweep/pkg/storage/s3"
	"github.com/logflow/sweep/pkg/telemetry"
	"github.com/logflow/sweep/pkg/tui"
	"github.com/logflow/sweep/pkg/watch"
)

// publishTimeout bounds summary publication after a run, even a canceled one.
const publishTimeout = 30 * time.Second

type runOptions struct {
	input            string
	numEvents        int64
	systematics      bool
	progressInterval time.Duration
	analysis         string
	cpuProfile       string
	summaryFile      string
	watch            bool
	noProgress       bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay events through the analysis",
		Long: `Replay events from an input through the analysis, once per variation.

The input is a local file or an s3://bucket/key URL; the format follows the
extension (.jsonl, .arrow, .parquet, .duckdb, .xlsx).

Examples:
  sweep run -i events.parquet
  sweep run -i events.parquet -n 1000 --systematics --analysis analysis.yaml
  sweep run -i s3://data/run42/events.arrow --systematics
  sweep run -i events.jsonl --cpuprofile cpu.pprof
  sweep run -i events.jsonl --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input file or s3:// URL (required)")
	cmd.Flags().Int64VarP(&opts.numEvents, "num-events", "n", -1, "Number of events to process (-1 = all)")
	cmd.Flags().BoolVar(&opts.systematics, "systematics", false, "Process every recommended variation, not just nominal")
	cmd.Flags().DurationVar(&opts.progressInterval, "progress-interval", 0, "Minimum time between progress reports")
	cmd.Flags().StringVar(&opts.analysis, "analysis", "", "Analysis definition (YAML)")
	cmd.Flags().StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the event loop to file")
	cmd.Flags().StringVar(&opts.summaryFile, "summary", "", "Write the run summary as YAML to file")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Run again whenever the input or analysis changes")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")

	cmd.MarkFlagRequired("input")

	return cmd
}

func (a *app) runRun(cmd *cobra.Command, opts *runOptions) error {
	cfg := a.cfg
	flags := cmd.Flags()
	if flags.Changed("num-events") {
		cfg.Run.MaxEvents = opts.numEvents
	}
	if flags.Changed("systematics") {
		cfg.Run.Systematics = opts.systematics
	}
	if flags.Changed("progress-interval") {
		cfg.Run.ProgressInterval = opts.progressInterval
	}
	if flags.Changed("analysis") {
		cfg.Analysis.Path = opts.analysis
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	shutdown, err := telemetry.InitOTLP(ctx, cfg.Telemetry)
	if err != nil {
		return sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "telemetry setup failed").
			WithContext(sweeperrors.KeyOperation, "init telemetry")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			a.logger.Warn("telemetry flush failed", "error", err)
		}
	}()

	r := &runner{app: a, opts: opts}
	defer r.close()
	r.openOutputs(ctx)

	if opts.watch {
		return r.watch(ctx)
	}
	return r.execute(ctx)
}

// runner executes runs and hands their summaries to the history and backends.
type runner struct {
	app      *app
	opts     *runOptions
	history  *state.Store
	backends *report.Multi
	closers  []func() error
}

// openOutputs connects the history store and the configured backends.
// Outputs are optional: one that cannot be reached is logged and skipped.
func (r *runner) openOutputs(ctx context.Context) {
	cfg := r.app.cfg
	logger := r.app.logger

	if cfg.History.Enabled {
		store, err := state.NewStore(cfg.History.Database)
		if err != nil {
			logger.Warn("run history unavailable", "path", cfg.History.Database, "error", err)
		} else {
			r.history = store
			r.closers = append(r.closers, store.Close)
		}
	}

	var backends []report.Backend
	if cfg.Report.Dir != "" {
		backends = append(backends, report.NewFileBackend(cfg.Report.Dir))
	}
	if cfg.Report.Redis.Address != "" {
		rb, err := report.NewRedisBackend(ctx, cfg.Report.Redis)
		if err != nil {
			logger.Warn("redis backend unavailable", "address", cfg.Report.Redis.Address, "error", err)
		} else {
			backends = append(backends, rb)
			r.closers = append(r.closers, rb.Close)
		}
	}
	if cfg.Report.S3Bucket != "" {
		client, err := s3store.NewClient(ctx, cfg.S3)
		if err != nil {
			logger.Warn("s3 backend unavailable", "bucket", cfg.Report.S3Bucket, "error", err)
		} else {
			backends = append(backends, report.NewS3Backend(client, cfg.Report.S3Bucket, cfg.Report.S3Prefix))
		}
	}
	r.backends = report.NewMulti(backends...)
}

func (r *runner) close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			r.app.logger.Warn("close failed", "error", err)
		}
	}
}

// execute performs one run. The returned error is the run's fatal error;
// failures to record or publish the summary are only logged.
func (r *runner) execute(ctx context.Context) error {
	a := r.app
	cfg := a.cfg
	logger := a.logger

	run := report.Run{
		ID:       uuid.NewString(),
		Input:    r.opts.input,
		Analysis: cfg.Analysis.Path,
		Started:  time.Now(),
	}
	logger = logger.With("run", run.ID)

	def, err := loadAnalysis(cfg.Analysis.Path)
	if err != nil {
		return err
	}
	step := analysis.NewCorrections(def)

	tracer := telemetry.Tracer()
	ctx, span := telemetry.StartRun(ctx, tracer, run.ID, run.Input)

	src, err := source.Open(ctx, r.opts.input, source.Options{
		Table:  cfg.Source.Table,
		Sheet:  cfg.Source.Sheet,
		S3:     cfg.S3,
		Logger: logger,
	})
	if err != nil {
		err = sweeperrors.Load(err, "open input", -1).WithContext(sweeperrors.KeyPath, r.opts.input)
		telemetry.EndRun(span, nil, err)
		r.finish(ctx, report.Build(run, nil, err, nil))
		return err
	}
	defer src.Close()

	tui.PrintHeader(a.stdout, tui.Header{
		Input:       run.Input,
		Analysis:    def.Name,
		Systematics: cfg.Run.Systematics,
		Requested:   cfg.Run.MaxEvents,
	})

	observers := replay.Observers{replay.LogProgress(logger), telemetry.NewProgress(span)}
	if !r.opts.noProgress {
		observers = append(observers, tui.NewBar(a.stderr))
	}

	var region replay.Region
	if r.opts.cpuProfile != "" {
		region = perf.NewCPURegion(r.opts.cpuProfile)
	}

	loop := replay.New(src, telemetry.TraceStep(step, tracer), replay.Options{
		MaxEvents:        cfg.Run.MaxEvents,
		Systematics:      cfg.Run.Systematics,
		Progress:         observers,
		ProgressInterval: cfg.Run.ProgressInterval,
		Region:           region,
		Logger:           logger,
	})

	res, runErr := loop.Run(ctx)
	telemetry.EndRun(span, res, runErr)

	r.finish(ctx, report.Build(run, res, runErr, step.Cutflow()))
	if runErr != nil {
		return runErr
	}

	if r.opts.cpuProfile != "" {
		logger.Info("cpu profile written", "path", r.opts.cpuProfile)
	}
	logger.Info("application finished")
	return nil
}

// finish prints, records and publishes a summary.
func (r *runner) finish(ctx context.Context, summary *report.Summary) {
	a := r.app
	tui.PrintSummary(a.stdout, summary)

	if r.opts.summaryFile != "" {
		if err := writeSummary(r.opts.summaryFile, summary); err != nil {
			a.logger.Warn("summary not written", "path", r.opts.summaryFile, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if r.history != nil {
		if err := r.history.Record(ctx, summary); err != nil {
			a.logger.Warn("run not recorded", "error", sweeperrors.Backend(err, "history"))
		}
	}
	if r.backends.Len() > 0 {
		if err := r.backends.Publish(ctx, summary); err != nil {
			a.logger.Warn("summary not published", "error", err)
		} else {
			a.logger.Debug("summary published", "backends", r.backends.Name())
		}
	}
}

// watch runs once, then again whenever the input or analysis file changes,
// until the context is canceled. Failed runs are logged and watching goes on.
func (r *runner) watch(ctx context.Context) error {
	logger := r.app.logger
	if strings.Contains(r.opts.input, "://") {
		return sweeperrors.Configuration("watch", "--watch needs a local input, got %s", r.opts.input)
	}

	w, err := watch.NewWatcher(watch.WithLogger(logger))
	if err != nil {
		return sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "watch setup failed").
			WithContext(sweeperrors.KeyOperation, "watch input")
	}
	defer w.Close()

	for _, path := range []string{r.opts.input, r.app.cfg.Analysis.Path} {
		if path == "" {
			continue
		}
		if err := w.Watch(path); err != nil {
			return sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "watch setup failed").
				WithContext(sweeperrors.KeyOperation, "watch input").
				WithContext(sweeperrors.KeyPath, path)
		}
	}

	if err := r.execute(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("run failed", "error", err)
	}

	w.OnChange = func(ctx context.Context, path string) error {
		return r.execute(ctx)
	}
	w.OnError = func(path string, err error) {
		logger.Error("run failed", "path", path, "error", err)
	}

	logger.Info("watching for changes", "input", r.opts.input)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadAnalysis reads the definition at path. Without a path every event
// passes through unchanged under the nominal variation only.
func loadAnalysis(path string) (*analysis.Definition, error) {
	if path == "" {
		return &analysis.Definition{Name: "passthrough"}, nil
	}
	def, err := analysis.LoadDefinition(path)
	if err != nil {
		return nil, sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "invalid analysis definition").
			WithContext(sweeperrors.KeyOperation, "load analysis").
			WithContext(sweeperrors.KeyPath, path)
	}
	return def, nil
}

func writeSummary(path string, s *report.Summary) error {
	data, err := s.YAML()
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
