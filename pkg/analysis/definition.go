// Package analysis provides a data-driven analysis step: relative
// systematic shifts on event fields, derived quantities and a selection.
package analysis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes an analysis, usually loaded from YAML.
type Definition struct {
	Name        string       `yaml:"name"`
	Systematics []Systematic `yaml:"systematics"`
	Derived     []Derived    `yaml:"derived"`
	Selection   []Cut        `yaml:"selection"`
}

// Systematic shifts one field by a relative amount: the up variation
// multiplies it by 1+Shift, the down variation by 1-Shift.
type Systematic struct {
	Name  string  `yaml:"name"`
	Field string  `yaml:"field"`
	Shift float64 `yaml:"shift"`
}

// Operation combines fields into a derived quantity.
type Operation string

const (
	OpSum     Operation = "sum"
	OpProduct Operation = "product"
	OpRatio   Operation = "ratio"
)

// Derived is a quantity computed from corrected fields.
type Derived struct {
	Name string    `yaml:"name"`
	Op   Operation `yaml:"op"`
	Of   []string  `yaml:"of"`
}

// Cut keeps events whose field lies in [Min, Max]. Nil bounds are open.
type Cut struct {
	Field string   `yaml:"field"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
}

// Pass reports whether v satisfies the cut.
func (c Cut) Pass(v float64) bool {
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}

// LoadDefinition reads and validates a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode analysis definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks names are unique and operations are well formed.
func (d *Definition) Validate() error {
	systematics := make(map[string]bool, len(d.Systematics))
	for i, s := range d.Systematics {
		if s.Name == "" || s.Field == "" {
			return fmt.Errorf("systematic %d: name and field are required", i)
		}
		if systematics[s.Name] {
			return fmt.Errorf("systematic %q defined twice", s.Name)
		}
		if s.Shift <= 0 || s.Shift >= 1 {
			return fmt.Errorf("systematic %q: shift must be in (0, 1), got %g", s.Name, s.Shift)
		}
		systematics[s.Name] = true
	}

	derived := make(map[string]bool, len(d.Derived))
	for i, q := range d.Derived {
		if q.Name == "" {
			return fmt.Errorf("derived %d: name is required", i)
		}
		if derived[q.Name] {
			return fmt.Errorf("derived %q defined twice", q.Name)
		}
		switch q.Op {
		case OpSum, OpProduct:
			if len(q.Of) == 0 {
				return fmt.Errorf("derived %q: %s needs at least one field", q.Name, q.Op)
			}
		case OpRatio:
			if len(q.Of) != 2 {
				return fmt.Errorf("derived %q: ratio needs exactly two fields", q.Name)
			}
		default:
			return fmt.Errorf("derived %q: unknown op %q", q.Name, q.Op)
		}
		derived[q.Name] = true
	}

	for i, c := range d.Selection {
		if c.Field == "" {
			return fmt.Errorf("cut %d: field is required", i)
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Errorf("cut on %q: min %g above max %g", c.Field, *c.Min, *c.Max)
		}
	}
	return nil
}
