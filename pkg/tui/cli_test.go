package tui

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/logflow/sweep/pkg/analysis"
	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/report"
	"github.com/logflow/sweep/pkg/state"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5K"},
		{2500000, "2.5M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in))
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
}

func TestPrintSummary_ListsCutflow(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &report.Summary{
		Status:         report.StatusCompleted,
		Processed:      10,
		Available:      10,
		Variations:     []string{"nominal", "JES__1up"},
		ElapsedSeconds: 2,
		EventsPerSec:   5,
		Cutflow: []analysis.Counts{
			{Variation: "nominal", Seen: 10, Passed: 6, SumWeights: 7.5},
			{Variation: "JES__1up", Seen: 10, Passed: 7, SumWeights: 8.25},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "RUN COMPLETE")
	assert.Contains(t, out, "JES__1up")
	assert.Contains(t, out, "8.25")
}

func TestPrintSummary_Failure(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &report.Summary{Status: report.StatusFailed, Error: "[E301] event source failed"})

	assert.Contains(t, buf.String(), "RUN FAILED")
	assert.Contains(t, buf.String(), "E301")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	assert.Contains(t, buf.String(), "no runs recorded")

	buf.Reset()
	PrintHistory(&buf, []*state.Run{{
		ID:        "0b6f3c2e-9d1a-4c57-8a43-1f2e3d4c5b6a",
		Status:    "failed",
		Code:      "E303",
		Input:     "events.parquet",
		StartedAt: time.Now(),
	}})
	assert.Contains(t, buf.String(), "0b6f3c2e ")
	assert.Contains(t, buf.String(), "failed E303")
}

func TestBar_ObservesAndFinishes(t *testing.T) {
	bar := NewBar(io.Discard)

	var f replay.Finisher = bar
	f.Finish(replay.Throughput{})
	assert.Nil(t, bar.bar, "no observation, no bar")

	var p replay.Progress = bar
	p.Observe(replay.ProgressUpdate{Index: 50, Bound: 100})
	assert.Equal(t, int64(50), bar.bar.State().CurrentNum)

	f.Finish(replay.Throughput{})
	assert.True(t, bar.bar.IsFinished())
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	PrintHeader(&buf, Header{Input: "events.parquet", Analysis: "dilepton", Systematics: true, Requested: -1})

	out := buf.String()
	assert.Contains(t, out, "events.parquet")
	assert.Contains(t, out, "dilepton")
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "recommended")

	buf.Reset()
	PrintHeader(&buf, Header{Input: "events.jsonl", Requested: 500})
	assert.Contains(t, buf.String(), "nominal only")
	assert.NotContains(t, buf.String(), "Analysis:")
}
