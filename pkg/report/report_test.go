package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/sweep/pkg/analysis"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/variation"
)

var started = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func completedResult() *replay.Result {
	return &replay.Result{
		State:      replay.StateCompleted,
		Variations: variation.NewSet(variation.Up("JES"), variation.Down("JES")),
		Bound:      replay.ResolveBound(10, 12),
		Throughput: replay.Throughput{
			Start:  started,
			End:    started.Add(2 * time.Second),
			Events: 10,
		},
		Processed:   10,
		Invocations: 30,
	}
}

func testRun() Run {
	return Run{ID: "run-0001", Input: "data/ttbar.parquet", Analysis: "dilepton", Started: started}
}

func TestSummary_YAML(t *testing.T) {
	cutflow := []analysis.Counts{
		{Variation: "nominal", Seen: 10, Passed: 6, SumWeights: 7.5},
		{Variation: "JES__1up", Seen: 10, Passed: 7, SumWeights: 8.25},
		{Variation: "JES__1down", Seen: 10, Passed: 5, SumWeights: 6},
	}
	s := Build(testRun(), completedResult(), nil, cutflow)

	data, err := s.YAML()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden.yaml"),
	)
	g.Assert(t, "summary", data)
}

func TestBuild_Completed(t *testing.T) {
	s := Build(testRun(), completedResult(), nil, nil)

	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, int64(10), s.Bound)
	assert.Equal(t, []string{"nominal", "JES__1up", "JES__1down"}, s.Variations)
	assert.InDelta(t, 5.0, s.EventsPerSec, 1e-9)
	assert.Empty(t, s.Code)
}

func TestBuild_FailureNamesOperation(t *testing.T) {
	res := completedResult()
	res.State = replay.StateRunning
	res.Processed = 3

	runErr := sweeperrors.Process(errors.New("jet calibration missing"), 3, "JES__1up", 1)
	s := Build(testRun(), res, runErr, nil)

	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "E303", s.Code)
	assert.Equal(t, "process event", s.Operation)
	assert.Contains(t, s.Error, "jet calibration missing")
	assert.Equal(t, int64(3), s.Processed)
}

func TestBuild_FailureBeforeLoop(t *testing.T) {
	s := Build(testRun(), nil, sweeperrors.Configuration("input", "input is required"), nil)

	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "E101", s.Code)
	assert.Zero(t, s.Processed)
	assert.Zero(t, s.EventsPerSec)
}

func TestBuild_DiscoveryFailureHasNoVariations(t *testing.T) {
	res := &replay.Result{State: replay.StateUninitialized}
	runErr := sweeperrors.Discovery(errors.New("systematics list unreadable"))

	s := Build(testRun(), res, runErr, nil)

	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "E201", s.Code)
	assert.Empty(t, s.Variations)
}

func TestFileBackend_Publish(t *testing.T) {
	b := NewFileBackend(t.TempDir() + "/runs")
	s := Build(testRun(), completedResult(), nil, nil)

	require.NoError(t, b.Publish(context.Background(), s))

	data, err := os.ReadFile(b.Path("run-0001"))
	require.NoError(t, err)

	var got Summary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Variations, got.Variations)
	assert.True(t, started.Equal(got.Started))
}

type fakeBackend struct {
	name      string
	err       error
	published atomic.Int32
}

func (f *fakeBackend) Publish(ctx context.Context, s *Summary) error {
	f.published.Add(1)
	return f.err
}

func (f *fakeBackend) Name() string { return f.name }

func TestMulti_PublishesEverywhere(t *testing.T) {
	file := &fakeBackend{name: "file"}
	redis := &fakeBackend{name: "redis", err: errors.New("connection refused")}
	s3 := &fakeBackend{name: "s3"}

	m := NewMulti(file, redis, s3)
	err := m.Publish(context.Background(), Build(testRun(), completedResult(), nil, nil))

	require.Error(t, err)
	assert.True(t, sweeperrors.IsCode(err, sweeperrors.CodeBackend))
	assert.False(t, sweeperrors.IsFatal(err))
	assert.Contains(t, err.Error(), "backend=redis")

	for _, b := range []*fakeBackend{file, redis, s3} {
		assert.Equal(t, int32(1), b.published.Load(), b.name)
	}
	assert.Equal(t, "file+redis+s3", m.Name())
}

type ctxBackend struct {
	ctxErr error
}

func (c *ctxBackend) Publish(ctx context.Context, s *Summary) error {
	time.Sleep(20 * time.Millisecond)
	c.ctxErr = ctx.Err()
	return nil
}

func (c *ctxBackend) Name() string { return "slow" }

func TestMulti_FailureDoesNotCancelOthers(t *testing.T) {
	slow := &ctxBackend{}
	m := NewMulti(&fakeBackend{name: "redis", err: errors.New("connection refused")}, slow)

	err := m.Publish(context.Background(), Build(testRun(), completedResult(), nil, nil))

	require.Error(t, err)
	assert.NoError(t, slow.ctxErr)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, NewMulti().Publish(context.Background(), &Summary{ID: "x"}))
}
