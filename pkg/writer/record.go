package writer

import (
	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/logflow/sweep/internal/model"
)

// eventSchema returns the Arrow schema for events with the given fields.
func eventSchema(fields []string) *arrow.Schema {
	cols := []arrow.Field{
		{Name: model.ColumnRun, Type: arrow.PrimitiveTypes.Int64},
		{Name: model.ColumnEvent, Type: arrow.PrimitiveTypes.Int64},
		{Name: model.ColumnWeight, Type: arrow.PrimitiveTypes.Float64},
	}
	for _, f := range fields {
		cols = append(cols, arrow.Field{Name: f, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(cols, nil)
}

// batcher accumulates events into Arrow record batches.
type batcher struct {
	fields  []string
	schema  *arrow.Schema
	builder *array.RecordBuilder
	rows    int
}

func newBatcher(fields []string) *batcher {
	schema := eventSchema(fields)
	return &batcher{
		fields:  fields,
		schema:  schema,
		builder: array.NewRecordBuilder(memory.NewGoAllocator(), schema),
	}
}

func (b *batcher) append(ev *model.Event) {
	b.builder.Field(0).(*array.Int64Builder).Append(ev.Run)
	b.builder.Field(1).(*array.Int64Builder).Append(ev.Number)
	b.builder.Field(2).(*array.Float64Builder).Append(ev.Weight)
	for i, name := range b.fields {
		fb := b.builder.Field(3 + i).(*array.Float64Builder)
		if v, ok := ev.Fields[name]; ok {
			fb.Append(v)
		} else {
			fb.AppendNull()
		}
	}
	b.rows++
}

// flush hands the accumulated batch to write and resets the builder.
func (b *batcher) flush(write func(arrow.Record) error) error {
	if b.rows == 0 {
		return nil
	}
	rec := b.builder.NewRecord()
	defer rec.Release()
	b.rows = 0
	return write(rec)
}

func (b *batcher) release() {
	b.builder.Release()
}
