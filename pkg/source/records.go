package source

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"

	"github.com/logflow/sweep/internal/model"
)

// records indexes a sequence of Arrow record batches by global row.
type records struct {
	batches []arrow.Record
	starts  []int64
	total   int64
}

// add retains rec. Empty batches are skipped.
func (r *records) add(rec arrow.Record) {
	if rec.NumRows() == 0 {
		return
	}
	rec.Retain()
	r.batches = append(r.batches, rec)
	r.starts = append(r.starts, r.total)
	r.total += rec.NumRows()
}

func (r *records) count() int64 {
	return r.total
}

func (r *records) load(index int64, ev *model.Event) error {
	if err := checkIndex(index, r.total); err != nil {
		return err
	}

	b := sort.Search(len(r.starts), func(i int) bool { return r.starts[i] > index }) - 1
	rec := r.batches[b]
	row := int(index - r.starts[b])

	for c := 0; c < int(rec.NumCols()); c++ {
		v, err := cell(rec.Column(c), row)
		if err != nil {
			return fmt.Errorf("column %q: %w", rec.ColumnName(c), err)
		}
		if err := setValue(ev, rec.ColumnName(c), v); err != nil {
			return err
		}
	}
	return nil
}

func (r *records) release() {
	for _, rec := range r.batches {
		rec.Release()
	}
	r.batches = nil
	r.starts = nil
	r.total = 0
}

// cell extracts one value of a column; nulls are nil.
func cell(arr arrow.Array, row int) (any, error) {
	if arr.IsNull(row) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(row), nil
	case *array.Float32:
		return a.Value(row), nil
	case *array.Int64:
		return a.Value(row), nil
	case *array.Int32:
		return a.Value(row), nil
	case *array.Int16:
		return a.Value(row), nil
	case *array.Int8:
		return a.Value(row), nil
	case *array.Uint64:
		return a.Value(row), nil
	case *array.Uint32:
		return a.Value(row), nil
	case *array.Uint16:
		return a.Value(row), nil
	case *array.Uint8:
		return a.Value(row), nil
	case *array.Boolean:
		return a.Value(row), nil
	case *array.String:
		return a.Value(row), nil
	case *array.LargeString:
		return a.Value(row), nil
	default:
		return nil, fmt.Errorf("unsupported arrow type %s", arr.DataType())
	}
}
