// Sweep - replays recorded events through an analysis across systematic variations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logflow/sweep/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sweep:", err)
		os.Exit(1)
	}
}

// app carries what every command shares once the root has loaded the configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep - replay events across systematic variations",
		Long: `Sweep replays recorded events through an analysis once per variation.

Each event is loaded once and processed for the nominal variation and,
with --systematics, for every variation the analysis recommends. Run
summaries are kept in a local history and can be published to a directory,
Redis or S3.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file merged over the standard locations")

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newVariationsCmd(a))
	rootCmd.AddCommand(newGenerateCmd(a))
	rootCmd.AddCommand(newBenchmarkCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))

	return rootCmd
}

// setup loads configuration and builds the logger. Flags win over
// environment and files.
func (a *app) setup(cmd *cobra.Command) error {
	m := config.NewManager()
	if err := m.Load(); err != nil {
		return err
	}
	if a.configPath != "" {
		if err := m.LoadFile(a.configPath); err != nil {
			return err
		}
	}

	cfg := m.Get()
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Run.Verbose = a.verbose
	}
	if flags.Changed("log-format") {
		cfg.Run.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.Run.LogFormat, cfg.Run.Verbose)
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded", "files", m.Paths())
	return nil
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
