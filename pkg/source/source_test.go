package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/sweep/internal/model"
	"github.com/logflow/sweep/pkg/source"
	"github.com/logflow/sweep/pkg/writer"
)

// writeEvents writes n events with a jet_pt field to path and returns path.
func writeEvents(t *testing.T, path string, n int) string {
	t.Helper()

	cfg := writer.DefaultConfig()
	cfg.Fields = []string{"jet_pt", "el_pt"}
	cfg.BatchSize = 3

	w, err := writer.Create(path, cfg)
	require.NoError(t, err)

	ev := model.NewEvent()
	for i := 0; i < n; i++ {
		ev.Reset()
		ev.Run = 284500
		ev.Number = int64(1000 + i)
		ev.Weight = 0.5
		ev.Fields["jet_pt"] = float64(10 * i)
		if i%2 == 0 {
			ev.Fields["el_pt"] = float64(i)
		}
		require.NoError(t, w.WriteEvent(context.Background(), ev))
	}
	require.NoError(t, w.Close())
	return path
}

func TestOpen_FileFormats(t *testing.T) {
	ctx := context.Background()

	for _, ext := range []string{".jsonl", ".arrow", ".parquet", ".duckdb", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			path := writeEvents(t, filepath.Join(t.TempDir(), "events"+ext), 7)

			src, err := source.Open(ctx, path, source.Options{})
			require.NoError(t, err)
			defer src.Close()

			count, err := src.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(7), count)

			ev := model.NewEvent()
			require.NoError(t, src.Load(ctx, 4, ev))
			assert.Equal(t, int64(284500), ev.Run)
			assert.Equal(t, int64(1004), ev.Number)
			assert.Equal(t, 0.5, ev.Weight)
			assert.Equal(t, map[string]float64{"jet_pt": 40, "el_pt": 4}, ev.Fields)

			ev.Reset()
			require.NoError(t, src.Load(ctx, 5, ev))
			assert.Equal(t, map[string]float64{"jet_pt": 50}, ev.Fields, "missing values stay absent")

			assert.Error(t, src.Load(ctx, 7, ev))
			assert.Error(t, src.Load(ctx, -1, ev))
		})
	}
}

func TestOpen_Unsupported(t *testing.T) {
	ctx := context.Background()

	_, err := source.Open(ctx, "", source.Options{})
	assert.Error(t, err)

	_, err = source.Open(ctx, "events.csv", source.Options{})
	assert.ErrorContains(t, err, ".csv")

	_, err = source.Open(ctx, "s3://bucket/events.root", source.Options{})
	assert.ErrorContains(t, err, ".root")
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := source.Open(context.Background(), filepath.Join(t.TempDir(), "none.jsonl"), source.Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]source.Format{
		"a.jsonl":      source.FormatJSONL,
		"a.NDJSON":     source.FormatJSONL,
		"a.feather":    source.FormatArrow,
		"a.parquet":    source.FormatParquet,
		"a.db":         source.FormatDuckDB,
		"a.xlsx":       source.FormatXLSX,
		"a.root":       source.FormatUnknown,
		"no-extension": source.FormatUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, source.DetectFormat(path), path)
	}
}

func TestJSONL_SkipsBlankLinesAndRoutesLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := "{\"event\": 1, \"met\": 12.5, \"trigger\": \"HLT_mu26\"}\n\n" +
		"{\"event\": 2, \"met\": 3, \"pass\": true}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src, err := source.OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	count, err := src.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ev := model.NewEvent()
	require.NoError(t, src.Load(context.Background(), 0, ev))
	assert.Equal(t, int64(1), ev.Number)
	assert.Equal(t, 1.0, ev.Weight)
	assert.Equal(t, "HLT_mu26", ev.Labels["trigger"])

	ev.Reset()
	require.NoError(t, src.Load(context.Background(), 1, ev))
	assert.Equal(t, map[string]float64{"met": 3, "pass": 1}, ev.Fields)
}

func TestJSONL_LargeEventNumberIsExact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := "{\"run\": 9007199254740993, \"event\": 1152921504606846977, \"met\": 1.5}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src, err := source.OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	ev := model.NewEvent()
	require.NoError(t, src.Load(context.Background(), 0, ev))
	assert.Equal(t, int64(9007199254740993), ev.Run)
	assert.Equal(t, int64(1152921504606846977), ev.Number)
	assert.Equal(t, 1.5, ev.Fields["met"])
}

func TestJSONL_NestedValueIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"jets": [1, 2]}`+"\n"), 0o644))

	src, err := source.OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Error(t, src.Load(context.Background(), 0, model.NewEvent()))
}

func TestDuckDB_MissingTable(t *testing.T) {
	path := writeEvents(t, filepath.Join(t.TempDir(), "events.duckdb"), 2)

	_, err := source.OpenDuckDB(context.Background(), path, "collisions")
	assert.ErrorContains(t, err, "collisions")
}

func TestDuckDB_LoadsAcrossBlocksInOrder(t *testing.T) {
	const n = 2*4096 + 10
	path := writeEvents(t, filepath.Join(t.TempDir(), "events.duckdb"), n)

	ctx := context.Background()
	src, err := source.OpenDuckDB(ctx, path, "")
	require.NoError(t, err)
	defer src.Close()

	count, err := src.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(n), count)

	ev := model.NewEvent()
	for i := int64(0); i < n; i++ {
		ev.Reset()
		require.NoError(t, src.Load(ctx, i, ev))
		require.Equal(t, 1000+i, ev.Number, "event %d", i)
		require.Equal(t, float64(10*i), ev.Fields["jet_pt"], "event %d", i)
	}

	// Going back re-fetches an earlier block.
	ev.Reset()
	require.NoError(t, src.Load(ctx, 17, ev))
	assert.Equal(t, int64(1017), ev.Number)
	assert.Equal(t, int64(284500), ev.Run)

	assert.Error(t, src.Load(ctx, n, ev))
}

func TestMemory(t *testing.T) {
	src := source.NewMemory([]source.Row{
		{"event": 1, "jet_pt": 25.0},
		{"event": 2, "jet_pt": 30.0, "label": "b-tagged"},
	})

	ev := model.NewEvent()
	require.NoError(t, src.Load(context.Background(), 1, ev))
	assert.Equal(t, int64(2), ev.Number)
	assert.Equal(t, "b-tagged", ev.Labels["label"])
	assert.Error(t, src.Load(context.Background(), 2, ev))
}

func TestMemory_IntegerHeaderColumns(t *testing.T) {
	ctx := context.Background()
	src := source.NewMemory([]source.Row{
		{"run": uint64(1<<62 + 3), "event": int64(1<<60 + 1), "nmuons": uint8(2)},
		{"event": uint64(1 << 63)},
		{"hits": uint64(1 << 63)},
	})

	ev := model.NewEvent()
	require.NoError(t, src.Load(ctx, 0, ev))
	assert.Equal(t, int64(1<<62+3), ev.Run)
	assert.Equal(t, int64(1<<60+1), ev.Number)
	assert.Equal(t, 2.0, ev.Fields["nmuons"])

	ev.Reset()
	assert.ErrorContains(t, src.Load(ctx, 1, ev), "overflows int64")

	ev.Reset()
	require.NoError(t, src.Load(ctx, 2, ev))
	assert.Equal(t, float64(1<<63), ev.Fields["hits"])
}
