package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/sweep/pkg/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history", "runs.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func summary(id string, started time.Time, status report.Status, rate float64) *report.Summary {
	return &report.Summary{
		ID:             id,
		Input:          "events.parquet",
		Started:        started,
		Status:         status,
		Bound:          100,
		Processed:      100,
		Variations:     []string{"nominal", "JES__1up", "JES__1down"},
		ElapsedSeconds: 2,
		EventsPerSec:   rate,
	}
}

func TestStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, summary("a", t0, report.StatusCompleted, 50)))
	require.NoError(t, s.Record(ctx, summary("b", t0.Add(time.Hour), report.StatusCompleted, 70)))

	failed := summary("c", t0.Add(2*time.Hour), report.StatusFailed, 0)
	failed.Code = "E303"
	failed.Error = "analysis step failed"
	require.NoError(t, s.Record(ctx, failed))

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "E303", runs[0].Code)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 3, runs[1].Variations)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Total)
	assert.Equal(t, int64(2), st.Completed)
	assert.Equal(t, int64(1), st.Failed)
	assert.InDelta(t, 60.0, st.MeanRate, 1e-9)
}

func TestStore_RecordReplaces(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Record(ctx, summary("a", now, report.StatusFailed, 0)))
	require.NoError(t, s.Record(ctx, summary("a", now, report.StatusCompleted, 10)))

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)

	sum, err := s.Summary(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"nominal", "JES__1up", "JES__1down"}, sum.Variations)
}

func TestStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Record(ctx, summary("old", time.Now().Add(-48*time.Hour), report.StatusCompleted, 1)))
	require.NoError(t, s.Record(ctx, summary("new", time.Now(), report.StatusCompleted, 1)))

	n, err := s.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
