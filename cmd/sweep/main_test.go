package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/logflow/sweep/internal/model"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/report"
)

// isolate points configuration and history at a temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("SWEEP_HISTORY_DATABASE", filepath.Join(dir, "history.duckdb"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRun_GeneratedEventsWithSystematics(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "events.jsonl")
	def := filepath.Join(dir, "analysis.yaml")
	summaryPath := filepath.Join(dir, "summary.yaml")

	_, err := execute(t, "generate", "-o", input, "-n", "250", "--analysis-out", def)
	require.NoError(t, err)

	out, err := execute(t, "run", "-i", input, "-n", "100", "--systematics",
		"--analysis", def, "--no-progress", "--summary", summaryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN COMPLETE")

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var sum report.Summary
	require.NoError(t, yaml.Unmarshal(data, &sum))

	assert.Equal(t, report.StatusCompleted, sum.Status)
	assert.Equal(t, int64(250), sum.Available)
	assert.Equal(t, int64(100), sum.Processed)
	assert.Equal(t, int64(700), sum.Invocations)
	assert.Equal(t, []string{
		"nominal", "JES__1up", "JES__1down", "LES__1up", "LES__1down", "MET__1up", "MET__1down",
	}, sum.Variations)
	require.Len(t, sum.Cutflow, 7)
	for _, c := range sum.Cutflow {
		assert.Equal(t, int64(100), c.Seen)
	}

	history, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, history, sum.ID[:8])
	assert.Contains(t, history, "completed")

	shown, err := execute(t, "history", "--show", sum.ID)
	require.NoError(t, err)
	assert.Contains(t, shown, "processed: 100")
}

func TestRun_NominalOnlyByDefault(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "events.parquet")
	summaryPath := filepath.Join(dir, "summary.yaml")

	_, err := execute(t, "generate", "-o", input, "-n", "40")
	require.NoError(t, err)

	_, err = execute(t, "run", "-i", input, "--no-progress", "--summary", summaryPath)
	require.NoError(t, err)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var sum report.Summary
	require.NoError(t, yaml.Unmarshal(data, &sum))
	assert.Equal(t, []string{"nominal"}, sum.Variations)
	assert.Equal(t, int64(40), sum.Processed)
	assert.Equal(t, int64(40), sum.Bound)
}

func TestRun_MissingInputNamesOperation(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "run", "-i", filepath.Join(dir, "absent.jsonl"), "--no-progress")
	require.Error(t, err)

	var sErr *sweeperrors.SweepError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, sweeperrors.CodeLoad, sErr.Code)
	assert.Equal(t, "open input", sErr.Operation())
	assert.NotContains(t, err.Error(), "\n")
}

func TestRun_InvalidBound(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run", "-i", "events.jsonl", "-n", "-5")
	assert.True(t, sweeperrors.IsCode(err, sweeperrors.CodeConfiguration))
}

func TestRun_InputIsRequired(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input")
}

func TestRun_BadAnalysis(t *testing.T) {
	dir := isolate(t)
	def := filepath.Join(dir, "analysis.yaml")
	require.NoError(t, os.WriteFile(def, []byte("derived: [{name: x, op: mean, of: [a]}]"), 0o644))

	_, err := execute(t, "run", "-i", "events.jsonl", "--analysis", def)
	var sErr *sweeperrors.SweepError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, sweeperrors.CodeConfiguration, sErr.Code)
	assert.Equal(t, "load analysis", sErr.Operation())
}

func TestVariations(t *testing.T) {
	dir := isolate(t)
	def := filepath.Join(dir, "analysis.yaml")
	require.NoError(t, writeDefinition(def, demoDefinition()))

	out, err := execute(t, "variations", "--analysis", def)
	require.NoError(t, err)
	assert.Contains(t, out, "7 variations")
	assert.Contains(t, out, "MET__1down")

	out, err = execute(t, "variations", "--analysis", def, "--nominal")
	require.NoError(t, err)
	assert.Contains(t, out, "1 variations")
	assert.NotContains(t, out, "JES__1up")
}

func TestBenchmark(t *testing.T) {
	isolate(t)

	out, err := execute(t, "benchmark", "--events", "200", "--runs", "2", "--format", "jsonl")
	require.NoError(t, err)
	assert.Contains(t, out, "Run 2:")
	assert.Contains(t, out, "AVERAGE:")
}

func TestBenchmark_UnknownFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "benchmark", "--events", "10", "--format", "csv")
	assert.True(t, sweeperrors.IsCode(err, sweeperrors.CodeConfiguration))
}

func TestGenerator_IsReproducible(t *testing.T) {
	a, b := newGenerator(42, 10), newGenerator(42, 10)
	ea, eb := model.NewEvent(), model.NewEvent()

	for i := int64(0); i < 25; i++ {
		a.fill(ea, i)
		b.fill(eb, i)
		require.Equal(t, ea, eb)
	}
	assert.Equal(t, int64(3), ea.Run)
	assert.Equal(t, int64(5), ea.Number)
	assert.GreaterOrEqual(t, ea.Fields["jet_pt"], 20.0)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "json", false).Info("processing events", "events", 10)
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	logger := newLogger(&buf, "text", false)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, "text", true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
