package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/logflow/sweep/internal/model"
)

// JSONLWriter writes one JSON object per event.
type JSONLWriter struct {
	cfg     Config
	buf     *bufio.Writer
	enc     *json.Encoder
	row     map[string]any
	written int64
}

// NewJSONLWriter creates a JSONL writer on output.
func NewJSONLWriter(output io.Writer, cfg Config) *JSONLWriter {
	buf := bufio.NewWriterSize(output, 256*1024)
	return &JSONLWriter{
		cfg: cfg,
		buf: buf,
		enc: json.NewEncoder(buf),
		row: make(map[string]any, len(cfg.Fields)+3),
	}
}

// WriteEvent implements Writer.
func (w *JSONLWriter) WriteEvent(ctx context.Context, ev *model.Event) error {
	clear(w.row)
	w.row[model.ColumnRun] = ev.Run
	w.row[model.ColumnEvent] = ev.Number
	w.row[model.ColumnWeight] = ev.Weight
	for _, name := range w.cfg.Fields {
		if v, ok := ev.Fields[name]; ok {
			w.row[name] = v
		}
	}
	if err := w.enc.Encode(w.row); err != nil {
		return err
	}
	w.written++
	return nil
}

// RowsWritten implements Writer.
func (w *JSONLWriter) RowsWritten() int64 {
	return w.written
}

// Close implements Writer.
func (w *JSONLWriter) Close() error {
	return w.buf.Flush()
}
