package replay

import "time"

// Throughput brackets the event loop of one run.
type Throughput struct {
	Start  time.Time
	End    time.Time
	Events int64
}

// Elapsed returns the measured wall-clock interval.
func (t Throughput) Elapsed() time.Duration {
	if t.End.Before(t.Start) {
		return 0
	}
	return t.End.Sub(t.Start)
}

// Rate returns events per second. ok is false when no event was processed
// or no time elapsed, in which case the rate is undefined.
func (t Throughput) Rate() (rate float64, ok bool) {
	elapsed := t.Elapsed()
	if t.Events <= 0 || elapsed <= 0 {
		return 0, false
	}
	return float64(t.Events) / elapsed.Seconds(), true
}
