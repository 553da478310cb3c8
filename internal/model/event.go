// Package model defines core data structures for sweep.
package model

import "sort"

// Event is a mutable view of one recorded event.
// Sources overwrite the view on every load; nothing accumulates across events.
type Event struct {
	// Index is the zero-based position of the event in its source.
	Index int64

	// Run and Number identify the event in the recording.
	Run    int64
	Number int64

	// Weight is the event weight, 1 when the source carries none.
	Weight float64

	// Fields holds numeric quantities keyed by column name.
	Fields map[string]float64

	// Labels holds non-numeric columns.
	Labels map[string]string
}

// Reserved column names mapped onto the event header instead of Fields.
const (
	ColumnRun    = "run"
	ColumnEvent  = "event"
	ColumnWeight = "weight"
)

// NewEvent returns an empty view ready to be loaded.
func NewEvent() *Event {
	e := &Event{}
	e.Reset()
	return e
}

// Reset clears the view for reuse, keeping allocated maps.
func (e *Event) Reset() {
	e.Index = 0
	e.Run = 0
	e.Number = 0
	e.Weight = 1
	if e.Fields == nil {
		e.Fields = make(map[string]float64, 16)
	} else {
		clear(e.Fields)
	}
	if e.Labels == nil {
		e.Labels = make(map[string]string, 4)
	} else {
		clear(e.Labels)
	}
}

// SetNumber routes a numeric column to the header or to Fields.
func (e *Event) SetNumber(column string, v float64) {
	switch column {
	case ColumnRun:
		e.Run = int64(v)
	case ColumnEvent:
		e.Number = int64(v)
	case ColumnWeight:
		e.Weight = v
	default:
		e.Fields[column] = v
	}
}

// SetInt routes an integer column. Run and event numbers are stored
// exactly; other columns go through SetNumber.
func (e *Event) SetInt(column string, v int64) {
	switch column {
	case ColumnRun:
		e.Run = v
	case ColumnEvent:
		e.Number = v
	default:
		e.SetNumber(column, float64(v))
	}
}

// SetLabel stores a non-numeric column.
func (e *Event) SetLabel(column, v string) {
	e.Labels[column] = v
}

// FieldNames returns the numeric field names in sorted order.
func (e *Event) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
