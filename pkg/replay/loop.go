package replay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/logflow/sweep/internal/model"
	sweeperrors "github.com/logflow/sweep/pkg/errors"
	"github.com/logflow/sweep/pkg/transient"
	"github.com/logflow/sweep/pkg/variation"
)

// Source supplies events by index.
// Count must be stable for the duration of a run.
type Source interface {
	Count(ctx context.Context) (int64, error)
	Load(ctx context.Context, index int64, ev *model.Event) error
}

// Step is the analysis performed for every (event, variation) pair.
// The variation is passed explicitly so a step needs no active-variation state.
type Step interface {
	variation.Recommender
	Process(ctx context.Context, ev *model.Event, v variation.Variation, store *transient.Store) error
}

// Applier is implemented by steps that prepare per-variation state.
// ApplyVariation is called immediately before Process for the same
// variation and must be idempotent.
type Applier interface {
	ApplyVariation(ctx context.Context, v variation.Variation) error
}

// Region brackets the measured interval, e.g. a CPU profile.
// Enter runs before the clock starts and Exit after it stops.
type Region interface {
	Enter() error
	Exit() error
}

// State is the lifecycle position of a Loop.
type State int

const (
	StateUninitialized State = iota
	StateBounded
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBounded:
		return "bounded"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ErrAlreadyRun is returned when Run is called a second time, whether or
// not the first run succeeded.
var ErrAlreadyRun = errors.New("replay: loop already run")

// Options configures a Loop.
type Options struct {
	// MaxEvents caps the run; AllEvents (-1) processes everything available.
	MaxEvents int64

	// Systematics enables the full recommended variation sweep.
	Systematics bool

	// Progress observes the loop at the bound/10 cadence.
	Progress Progress

	// ProgressInterval additionally limits observations to one per interval.
	ProgressInterval time.Duration

	// Region is entered before the clock starts and exited after it stops.
	Region Region

	// Store is the transient store; a fresh one is created when nil.
	Store *transient.Store

	Logger *slog.Logger

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Result describes a run, complete or not.
type Result struct {
	State      State
	Variations variation.Set
	Bound      Bound
	Throughput Throughput

	// Processed counts events whose variations all succeeded.
	Processed int64

	// Invocations counts successful Process calls.
	Invocations int64
}

// Loop replays events from a Source through a Step.
type Loop struct {
	source Source
	step   Step
	opts   Options
	store  *transient.Store
	logger *slog.Logger
	now    func() time.Time

	state   State
	started bool
}

// New creates a loop. Source and store are owned by the loop for the run.
func New(source Source, step Step, opts Options) *Loop {
	l := &Loop{
		source: source,
		step:   step,
		opts:   opts,
		store:  opts.Store,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if l.store == nil {
		l.store = transient.New()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return l.state
}

// Store returns the transient store the loop clears between events.
func (l *Loop) Store() *transient.Store {
	return l.store
}

// Run executes the loop. On failure the returned Result describes how far
// the run got and the error is a *errors.SweepError naming the operation.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	if l.started {
		return nil, ErrAlreadyRun
	}
	l.started = true
	res := &Result{State: l.state}

	set, err := variation.Resolve(ctx, l.opts.Systematics, l.step)
	if err != nil {
		return res, sweeperrors.Discovery(err)
	}
	res.Variations = set

	available, err := l.source.Count(ctx)
	if err != nil {
		return res, sweeperrors.Load(err, "count events", -1)
	}
	res.Bound = ResolveBound(l.opts.MaxEvents, available)
	l.transition(res, StateBounded)

	l.logger.Info("processing events",
		"events", res.Bound.Events,
		"available", res.Bound.Available,
		"variations", set.Len())

	if l.opts.Region != nil {
		if err := l.opts.Region.Enter(); err != nil {
			return res, sweeperrors.Wrap(err, sweeperrors.CodeConfiguration, "enter measured region").
				WithContext(sweeperrors.KeyOperation, "enter measured region")
		}
	}

	l.transition(res, StateRunning)
	res.Throughput.Start = l.now()
	runErr := l.events(ctx, res)
	res.Throughput.End = l.now()
	res.Throughput.Events = res.Processed

	if l.opts.Region != nil {
		if err := l.opts.Region.Exit(); err != nil {
			l.logger.Warn("leaving measured region failed", "error", err)
		}
	}

	if runErr != nil {
		return res, runErr
	}

	l.transition(res, StateCompleted)
	if f, ok := l.opts.Progress.(Finisher); ok {
		f.Finish(res.Throughput)
	}

	attrs := []any{"events", res.Processed, "elapsed", res.Throughput.Elapsed()}
	if rate, ok := res.Throughput.Rate(); ok {
		attrs = append(attrs, "events_per_sec", rate)
	}
	l.logger.Info("run finished", attrs...)
	return res, nil
}

// events is the Running state body.
func (l *Loop) events(ctx context.Context, res *Result) error {
	applier, _ := l.step.(Applier)
	variations := res.Variations.All()
	bound := res.Bound.Events
	cadence := Cadence(bound)
	gate := throttle{interval: l.opts.ProgressInterval}
	view := model.NewEvent()

	for index := int64(0); index < bound; index++ {
		if err := ctx.Err(); err != nil {
			return sweeperrors.Canceled(err, index)
		}

		if l.opts.Progress != nil && due(index, cadence) {
			now := l.now()
			if gate.allow(index, now) {
				l.opts.Progress.Observe(ProgressUpdate{
					Index:   index,
					Bound:   bound,
					Elapsed: now.Sub(res.Throughput.Start),
				})
			}
		}

		view.Reset()
		if err := l.source.Load(ctx, index, view); err != nil {
			return sweeperrors.Load(err, "load event", index)
		}
		view.Index = index

		for j, v := range variations {
			if applier != nil {
				if err := applier.ApplyVariation(ctx, v); err != nil {
					return sweeperrors.Apply(err, index, v.String(), j)
				}
			}
			if err := l.step.Process(ctx, view, v, l.store); err != nil {
				return sweeperrors.Process(err, index, v.String(), j)
			}
			res.Invocations++
		}

		l.store.Clear()
		res.Processed++
	}
	return nil
}

func (l *Loop) transition(res *Result, next State) {
	l.logger.Debug("loop state", "from", l.state.String(), "to", next.String())
	l.state = next
	res.State = next
}
