package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/logflow/sweep/internal/model"
	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/transient"
	"github.com/logflow/sweep/pkg/variation"
)

// StartRun starts the span of one run.
func StartRun(ctx context.Context, tracer trace.Tracer, runID, input string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sweep.run", trace.WithAttributes(
		attribute.String("sweep.run_id", runID),
		attribute.String("sweep.input", input),
	))
}

// EndRun records the result on span and ends it.
func EndRun(span trace.Span, res *replay.Result, err error) {
	if res != nil {
		span.SetAttributes(
			attribute.Int64("sweep.bound", res.Bound.Events),
			attribute.Int64("sweep.available", res.Bound.Available),
			attribute.Int64("sweep.processed", res.Processed),
			attribute.Int("sweep.variations", res.Variations.Len()),
			attribute.String("sweep.state", res.State.String()),
		)
		if rate, ok := res.Throughput.Rate(); ok {
			span.SetAttributes(attribute.Float64("sweep.events_per_sec", rate))
		}
	}
	RecordError(span, err)
	span.End()
}

// Step wraps an analysis step so variation discovery runs in its own span.
// Event processing is passed through untraced.
type Step struct {
	replay.Step
	tracer trace.Tracer
}

// TraceStep wraps step.
func TraceStep(step replay.Step, tracer trace.Tracer) *Step {
	return &Step{Step: step, tracer: tracer}
}

// RecommendedVariations implements variation.Recommender.
func (s *Step) RecommendedVariations(ctx context.Context) ([]variation.Variation, error) {
	ctx, span := s.tracer.Start(ctx, "sweep.discovery")
	defer span.End()

	vs, err := s.Step.RecommendedVariations(ctx)
	span.SetAttributes(attribute.Int("sweep.recommended", len(vs)))
	RecordError(span, err)
	return vs, err
}

// ApplyVariation forwards to the wrapped step when it prepares variations.
func (s *Step) ApplyVariation(ctx context.Context, v variation.Variation) error {
	if a, ok := s.Step.(replay.Applier); ok {
		return a.ApplyVariation(ctx, v)
	}
	return nil
}

// Process implements replay.Step.
func (s *Step) Process(ctx context.Context, ev *model.Event, v variation.Variation, store *transient.Store) error {
	return s.Step.Process(ctx, ev, v, store)
}

// Progress records progress observations as events on a span.
type Progress struct {
	span trace.Span
}

// NewProgress creates an observer recording on span.
func NewProgress(span trace.Span) *Progress {
	return &Progress{span: span}
}

// Observe implements replay.Progress.
func (p *Progress) Observe(u replay.ProgressUpdate) {
	p.span.AddEvent("progress", trace.WithAttributes(
		attribute.Int64("sweep.entry", u.Index),
		attribute.Int64("sweep.bound", u.Bound),
		attribute.Int64("sweep.elapsed_ms", u.Elapsed.Milliseconds()),
	))
}

// Finish implements replay.Finisher.
func (p *Progress) Finish(t replay.Throughput) {
	p.span.AddEvent("finished", trace.WithAttributes(
		attribute.Int64("sweep.events", t.Events),
		attribute.Int64("sweep.elapsed_ms", t.Elapsed().Milliseconds()),
	))
}
