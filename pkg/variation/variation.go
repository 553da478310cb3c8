// Package variation defines systematic variations and the ordered set of
// variations a run sweeps over.
package variation

import (
	"context"
	"fmt"
	"strings"
)

// Variation names one systematic shift. The zero value is Nominal.
type Variation struct {
	name string
}

// Nominal is the baseline: no shift applied.
var Nominal = Variation{}

// Suffixes of the one-sigma shifts of a systematic.
const (
	SuffixUp   = "__1up"
	SuffixDown = "__1down"

	nominalName = "nominal"
)

// New returns the variation with the given name.
// The empty name and "nominal" both denote Nominal.
func New(name string) Variation {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, nominalName) {
		return Nominal
	}
	return Variation{name: name}
}

// Up returns the +1 sigma variation of a systematic.
func Up(systematic string) Variation {
	return Variation{name: systematic + SuffixUp}
}

// Down returns the -1 sigma variation of a systematic.
func Down(systematic string) Variation {
	return Variation{name: systematic + SuffixDown}
}

// Name returns the identifier, empty for Nominal.
func (v Variation) Name() string { return v.name }

// IsNominal reports whether v applies no shift.
func (v Variation) IsNominal() bool { return v.name == "" }

// String renders Nominal as "nominal".
func (v Variation) String() string {
	if v.IsNominal() {
		return nominalName
	}
	return v.name
}

// Systematic splits a one-sigma variation into its systematic name and
// direction (+1 or -1). ok is false for Nominal and for names without a
// recognised suffix.
func (v Variation) Systematic() (name string, direction int, ok bool) {
	switch {
	case strings.HasSuffix(v.name, SuffixUp):
		return strings.TrimSuffix(v.name, SuffixUp), 1, true
	case strings.HasSuffix(v.name, SuffixDown):
		return strings.TrimSuffix(v.name, SuffixDown), -1, true
	default:
		return "", 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variation) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variation) UnmarshalText(text []byte) error {
	*v = New(string(text))
	return nil
}

// Set is an ordered, duplicate-free, non-empty list of variations that
// always contains Nominal. It is immutable once built.
type Set struct {
	items []Variation
}

// NominalOnly returns the set [Nominal].
func NominalOnly() Set {
	return Set{items: []Variation{Nominal}}
}

// NewSet builds a set from vs, keeping the order of first occurrence.
// Nominal is prepended when vs does not contain it.
func NewSet(vs ...Variation) Set {
	seen := make(map[string]struct{}, len(vs)+1)
	items := make([]Variation, 0, len(vs)+1)

	hasNominal := false
	for _, v := range vs {
		if v.IsNominal() {
			hasNominal = true
			break
		}
	}
	if !hasNominal {
		items = append(items, Nominal)
		seen[Nominal.name] = struct{}{}
	}

	for _, v := range vs {
		if _, dup := seen[v.name]; dup {
			continue
		}
		seen[v.name] = struct{}{}
		items = append(items, v)
	}
	return Set{items: items}
}

// Len returns the number of variations.
func (s Set) Len() int {
	if len(s.items) == 0 {
		return 1
	}
	return len(s.items)
}

// At returns the i-th variation.
func (s Set) At(i int) Variation {
	if len(s.items) == 0 {
		if i != 0 {
			panic(fmt.Sprintf("variation: index %d out of range [0:1]", i))
		}
		return Nominal
	}
	return s.items[i]
}

// All returns a copy of the variations in order.
func (s Set) All() []Variation {
	if len(s.items) == 0 {
		return []Variation{Nominal}
	}
	out := make([]Variation, len(s.items))
	copy(out, s.items)
	return out
}

// Names returns the rendered names in order.
func (s Set) Names() []string {
	all := s.All()
	names := make([]string, len(all))
	for i, v := range all {
		names[i] = v.String()
	}
	return names
}

// Contains reports whether v is in the set.
func (s Set) Contains(v Variation) bool {
	for _, item := range s.All() {
		if item == v {
			return true
		}
	}
	return false
}

// Recommender reports the variations an analysis step recommends.
type Recommender interface {
	RecommendedVariations(ctx context.Context) ([]Variation, error)
}

// RecommenderFunc adapts a function to Recommender.
type RecommenderFunc func(ctx context.Context) ([]Variation, error)

// RecommendedVariations implements Recommender.
func (f RecommenderFunc) RecommendedVariations(ctx context.Context) ([]Variation, error) {
	return f(ctx)
}

// Resolve produces the set for a run. With systematics disabled it is
// [Nominal] and r is not consulted; otherwise it is r's recommendation in
// reported order. A recommendation failure is returned unwrapped; callers
// treat it as fatal since no partial set is safe.
func Resolve(ctx context.Context, systematics bool, r Recommender) (Set, error) {
	if !systematics {
		return NominalOnly(), nil
	}
	if r == nil {
		return Set{}, fmt.Errorf("no variation recommender configured")
	}

	vs, err := r.RecommendedVariations(ctx)
	if err != nil {
		return Set{}, err
	}
	return NewSet(vs...), nil
}
