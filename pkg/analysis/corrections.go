package analysis

import (
	"context"
	"fmt"

	"github.com/logflow/sweep/internal/model"
	"github.com/logflow/sweep/pkg/transient"
	"github.com/logflow/sweep/pkg/variation"
)

// Store key prefixes written for every processed variation.
const (
	KeyCorrected = "corrected/"
	KeySelected  = "selected/"
)

// Quantities are the corrected and derived values of one event under one
// variation.
type Quantities map[string]float64

// Counts is the cutflow of one variation.
type Counts struct {
	Variation  string  `json:"variation" yaml:"variation"`
	Seen       int64   `json:"seen" yaml:"seen"`
	Passed     int64   `json:"passed" yaml:"passed"`
	SumWeights float64 `json:"sum_weights" yaml:"sum_weights"`
}

// shifts maps a field to its multiplicative factor.
type shifts map[string]float64

// Corrections is an analysis step driven by a Definition.
// It is used by a single replay loop and is not safe for concurrent use.
type Corrections struct {
	def      *Definition
	byName   map[string]Systematic
	prepared map[variation.Variation]shifts

	order   []variation.Variation
	cutflow map[variation.Variation]*Counts
}

// NewCorrections creates the step for a validated definition.
func NewCorrections(def *Definition) *Corrections {
	byName := make(map[string]Systematic, len(def.Systematics))
	for _, s := range def.Systematics {
		byName[s.Name] = s
	}
	return &Corrections{
		def:      def,
		byName:   byName,
		prepared: make(map[variation.Variation]shifts),
		cutflow:  make(map[variation.Variation]*Counts),
	}
}

// Name returns the analysis name.
func (c *Corrections) Name() string {
	return c.def.Name
}

// RecommendedVariations returns Nominal followed by the up and down shift
// of every systematic, in definition order.
func (c *Corrections) RecommendedVariations(ctx context.Context) ([]variation.Variation, error) {
	vs := make([]variation.Variation, 0, 1+2*len(c.def.Systematics))
	vs = append(vs, variation.Nominal)
	for _, s := range c.def.Systematics {
		vs = append(vs, variation.Up(s.Name), variation.Down(s.Name))
	}
	return vs, nil
}

// ApplyVariation prepares the shift table of v. Applying the same variation
// again is a no-op.
func (c *Corrections) ApplyVariation(ctx context.Context, v variation.Variation) error {
	_, err := c.shiftsFor(v)
	return err
}

func (c *Corrections) shiftsFor(v variation.Variation) (shifts, error) {
	if table, ok := c.prepared[v]; ok {
		return table, nil
	}

	table := shifts{}
	if !v.IsNominal() {
		name, direction, ok := v.Systematic()
		if !ok {
			return nil, fmt.Errorf("variation %q is not a one-sigma shift", v)
		}
		s, ok := c.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown systematic %q", name)
		}
		table[s.Field] = 1 + float64(direction)*s.Shift
	}
	c.prepared[v] = table
	return table, nil
}

// Process corrects ev under v, records the quantities and selection
// decision in store and updates the cutflow of v.
func (c *Corrections) Process(ctx context.Context, ev *model.Event, v variation.Variation, store *transient.Store) error {
	table, err := c.shiftsFor(v)
	if err != nil {
		return err
	}

	q := make(Quantities, len(ev.Fields)+len(c.def.Derived))
	for k, val := range ev.Fields {
		q[k] = val
	}
	for field, factor := range table {
		val, ok := q[field]
		if !ok {
			return fmt.Errorf("event %d has no field %q", ev.Index, field)
		}
		q[field] = val * factor
	}

	for _, d := range c.def.Derived {
		val, err := derive(d, q)
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.Index, err)
		}
		q[d.Name] = val
	}

	passed := true
	for _, cut := range c.def.Selection {
		val, ok := q[cut.Field]
		if !ok {
			return fmt.Errorf("event %d has no field %q for selection", ev.Index, cut.Field)
		}
		if !cut.Pass(val) {
			passed = false
			break
		}
	}

	if err := store.Record(KeyCorrected+v.String(), q); err != nil {
		return err
	}
	if err := store.Record(KeySelected+v.String(), passed); err != nil {
		return err
	}

	counts := c.counts(v)
	counts.Seen++
	if passed {
		counts.Passed++
		counts.SumWeights += ev.Weight
	}
	return nil
}

func (c *Corrections) counts(v variation.Variation) *Counts {
	counts, ok := c.cutflow[v]
	if !ok {
		counts = &Counts{Variation: v.String()}
		c.cutflow[v] = counts
		c.order = append(c.order, v)
	}
	return counts
}

// Cutflow returns the counts per variation in first-processed order.
func (c *Corrections) Cutflow() []Counts {
	out := make([]Counts, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, *c.cutflow[v])
	}
	return out
}

func derive(d Derived, q Quantities) (float64, error) {
	values := make([]float64, len(d.Of))
	for i, name := range d.Of {
		val, ok := q[name]
		if !ok {
			return 0, fmt.Errorf("derived %q: no field %q", d.Name, name)
		}
		values[i] = val
	}

	switch d.Op {
	case OpSum:
		total := 0.0
		for _, v := range values {
			total += v
		}
		return total, nil
	case OpProduct:
		total := 1.0
		for _, v := range values {
			total *= v
		}
		return total, nil
	case OpRatio:
		if values[1] == 0 {
			return 0, fmt.Errorf("derived %q: division by zero", d.Name)
		}
		return values[0] / values[1], nil
	default:
		return 0, fmt.Errorf("derived %q: unknown op %q", d.Name, d.Op)
	}
}
