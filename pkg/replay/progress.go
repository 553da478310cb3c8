package replay

import (
	"log/slog"
	"time"
)

// ProgressUpdate is one observation of a running loop, taken before the
// event at Index is loaded.
type ProgressUpdate struct {
	Index   int64
	Bound   int64
	Elapsed time.Duration
}

// Progress observes a running loop. Observations never affect the loop.
type Progress interface {
	Observe(p ProgressUpdate)
}

// Finisher is implemented by observers that want the final throughput.
type Finisher interface {
	Finish(t Throughput)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(p ProgressUpdate)

// Observe implements Progress.
func (f ProgressFunc) Observe(p ProgressUpdate) { f(p) }

// Observers fans one observation out to several observers.
type Observers []Progress

// Observe implements Progress.
func (o Observers) Observe(p ProgressUpdate) {
	for _, obs := range o {
		obs.Observe(p)
	}
}

// Finish implements Finisher for the members that support it.
func (o Observers) Finish(t Throughput) {
	for _, obs := range o {
		if f, ok := obs.(Finisher); ok {
			f.Finish(t)
		}
	}
}

// LogProgress logs each observation at Info level.
func LogProgress(logger *slog.Logger) Progress {
	return ProgressFunc(func(p ProgressUpdate) {
		logger.Info("processing entry", "entry", p.Index, "of", p.Bound)
	})
}

// Cadence returns the count interval between observations: bound/10.
func Cadence(bound int64) int64 {
	return bound / 10
}

// due reports whether index falls on the cadence. A zero cadence only
// fires at index 0.
func due(index, cadence int64) bool {
	if cadence <= 0 {
		return index == 0
	}
	return index%cadence == 0
}

// throttle drops count-due observations that arrive within interval of the
// previous one. Index 0 always passes.
type throttle struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

func (t *throttle) allow(index int64, now time.Time) bool {
	if t.interval <= 0 || !t.fired || index == 0 {
		t.last, t.fired = now, true
		return true
	}
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
