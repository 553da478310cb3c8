// Package report builds run summaries and publishes them to backends.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logflow/sweep/pkg/analysis"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/replay"
)

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Summary describes one run.
type Summary struct {
	ID       string    `json:"id" yaml:"id"`
	Input    string    `json:"input" yaml:"input"`
	Analysis string    `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Started  time.Time `json:"started" yaml:"started"`

	Status    Status `json:"status" yaml:"status"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	Code      string `json:"code,omitempty" yaml:"code,omitempty"`
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`

	Requested   int64    `json:"requested" yaml:"requested"`
	Available   int64    `json:"available" yaml:"available"`
	Bound       int64    `json:"bound" yaml:"bound"`
	Processed   int64    `json:"processed" yaml:"processed"`
	Invocations int64    `json:"invocations" yaml:"invocations"`
	Variations  []string `json:"variations" yaml:"variations"`

	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	EventsPerSec   float64 `json:"events_per_sec,omitempty" yaml:"events_per_sec,omitempty"`

	Cutflow []analysis.Counts `json:"cutflow,omitempty" yaml:"cutflow,omitempty"`
}

// Run identifies a run before it starts.
type Run struct {
	ID       string
	Input    string
	Analysis string
	Started  time.Time
}

// Build summarizes a run from the loop result and its error, if any.
// res may be nil when the loop never started.
func Build(run Run, res *replay.Result, runErr error, cutflow []analysis.Counts) *Summary {
	s := &Summary{
		ID:       run.ID,
		Input:    run.Input,
		Analysis: run.Analysis,
		Started:  run.Started.UTC(),
		Status:   StatusCompleted,
		Cutflow:  cutflow,
	}

	if res != nil {
		s.Requested = res.Bound.Requested
		s.Available = res.Bound.Available
		s.Bound = res.Bound.Events
		s.Processed = res.Processed
		s.Invocations = res.Invocations
		if res.State >= replay.StateBounded {
			s.Variations = res.Variations.Names()
		}
		s.ElapsedSeconds = res.Throughput.Elapsed().Seconds()
		if rate, ok := res.Throughput.Rate(); ok {
			s.EventsPerSec = rate
		}
	}

	if runErr != nil {
		s.Status = StatusFailed
		s.Error = runErr.Error()
		s.Code = string(sweeperrors.GetCode(runErr))
		var sErr *sweeperrors.SweepError
		if errors.As(runErr, &sErr) {
			s.Operation = sErr.Operation()
		}
	}
	return s
}

// YAML renders the summary as YAML with two-space indentation.
func (s *Summary) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSON renders the summary as indented JSON.
func (s *Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
