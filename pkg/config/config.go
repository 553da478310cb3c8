// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/report"
	s3store "github.com/logflow/sweep/pkg/storage/s3"
	"github.com/logflow/sweep/pkg/telemetry"
)

// EnvPrefix prefixes every environment variable read by sweep.
const EnvPrefix = "SWEEP_"

// Config holds all sweep configuration.
type Config struct {
	Version int `yaml:"version"`

	Run       RunConfig            `yaml:"run" envPrefix:"RUN_"`
	Analysis  AnalysisConfig       `yaml:"analysis" envPrefix:"ANALYSIS_"`
	Source    SourceConfig         `yaml:"source" envPrefix:"SOURCE_"`
	S3        s3store.Config       `yaml:"s3" envPrefix:"S3_"`
	Report    ReportConfig         `yaml:"report" envPrefix:"REPORT_"`
	History   HistoryConfig        `yaml:"history" envPrefix:"HISTORY_"`
	Telemetry telemetry.OTLPConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// RunConfig controls the replay loop.
type RunConfig struct {
	MaxEvents        int64         `yaml:"max_events" env:"MAX_EVENTS"`               // -1 = all
	Systematics      bool          `yaml:"systematics" env:"SYSTEMATICS"`             // full variation sweep
	ProgressInterval time.Duration `yaml:"progress_interval" env:"PROGRESS_INTERVAL"` // 0 = count cadence only
	LogFormat        string        `yaml:"log_format" env:"LOG_FORMAT"`               // text | json
	Verbose          bool          `yaml:"verbose" env:"VERBOSE"`
}

// AnalysisConfig selects the analysis definition.
type AnalysisConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// SourceConfig controls how inputs are read.
type SourceConfig struct {
	Table string `yaml:"table" env:"TABLE"` // DuckDB table
	Sheet string `yaml:"sheet" env:"SHEET"` // xlsx sheet, first when empty
}

// ReportConfig selects the summary backends. Empty settings disable a backend.
type ReportConfig struct {
	Dir      string             `yaml:"dir" env:"DIR"`
	Redis    report.RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
	S3Bucket string             `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix string             `yaml:"s3_prefix" env:"S3_PREFIX"`
}

// HistoryConfig controls the local run history.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED"`
	Database  string        `yaml:"database" env:"DATABASE"`
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	sweepDir := filepath.Join(homeDir, ".sweep")

	return &Config{
		Version: 1,
		Run: RunConfig{
			MaxEvents: -1,
			LogFormat: "text",
		},
		Source: SourceConfig{
			Table: "events",
		},
		S3: s3store.Config{
			Timeout: s3store.DefaultTimeout,
		},
		Report: ReportConfig{
			Redis:    report.DefaultRedisConfig(""),
			S3Prefix: "sweep/runs",
		},
		History: HistoryConfig{
			Enabled:   true,
			Database:  filepath.Join(sweepDir, "history.duckdb"),
			Retention: 90 * 24 * time.Hour,
		},
		Telemetry: telemetry.DefaultOTLPConfig("sweep"),
	}
}

// Validate checks the configuration before any processing starts.
func (c *Config) Validate() error {
	if c.Run.MaxEvents < -1 {
		return sweeperrors.Configuration("max_events",
			"max_events must be -1 (all) or a non-negative count, got %d", c.Run.MaxEvents)
	}
	if c.Run.ProgressInterval < 0 {
		return sweeperrors.Configuration("progress_interval",
			"progress_interval must not be negative, got %s", c.Run.ProgressInterval)
	}
	switch c.Run.LogFormat {
	case "text", "json":
	default:
		return sweeperrors.Configuration("log_format",
			"log_format must be text or json, got %q", c.Run.LogFormat)
	}
	if c.Source.Table == "" {
		return sweeperrors.Configuration("source.table", "source table must not be empty")
	}
	if c.History.Enabled && c.History.Database == "" {
		return sweeperrors.Configuration("history.database", "history is enabled without a database path")
	}
	if c.Report.Redis.Address != "" && c.Report.Redis.Timeout <= 0 {
		return sweeperrors.Configuration("report.redis.timeout", "redis timeout must be positive")
	}
	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return sweeperrors.Configuration("telemetry.sampling_ratio",
			"sampling ratio must be within [0, 1], got %g", r)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return sweeperrors.Configuration("telemetry.endpoint", "telemetry is enabled without an endpoint")
	}
	return nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	search  []string          // candidate files in priority order
	environ map[string]string // nil reads the process environment
	paths   []string          // files that were loaded
}

// NewManager creates a manager reading the standard locations.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
		search: configPaths(),
	}
}

// NewManagerWith creates a manager reading the given files and environment.
func NewManagerWith(files []string, environ map[string]string) *Manager {
	if environ == nil {
		environ = map[string]string{}
	}
	return &Manager{
		config:  Default(),
		search:  files,
		environ: environ,
	}
}

// Load loads configuration from all sources in priority order.
// Missing files are skipped; unreadable or invalid ones are errors.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.search {
		if err := m.loadFile(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return sweeperrors.Wrapf(err, sweeperrors.CodeConfiguration, "load config %s", path).
				WithContext(sweeperrors.KeyPath, path)
		}
		m.paths = append(m.paths, path)
	}

	if err := m.loadEnv(); err != nil {
		return sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "read environment")
	}
	return nil
}

// LoadFile merges one more file on top of the loaded configuration, as
// for an explicit --config flag. The file must exist.
func (m *Manager) LoadFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadFile(path); err != nil {
		return sweeperrors.Wrapf(err, sweeperrors.CodeConfiguration, "load config %s", path).
			WithContext(sweeperrors.KeyPath, path)
	}
	m.paths = append(m.paths, path)
	return nil
}

// configPaths returns config file paths in priority order.
func configPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/sweep/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".sweep", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".sweep.yaml"))
	}

	return paths
}

// loadFile decodes a file over the current configuration; keys absent from
// the file keep their value.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, m.config); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays SWEEP_* environment variables.
func (m *Manager) loadEnv() error {
	opts := env.Options{Prefix: EnvPrefix}
	if m.environ != nil {
		opts.Environment = m.environ
	}
	return env.ParseWithOptions(m.config, opts)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Paths returns the files that were loaded.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}
