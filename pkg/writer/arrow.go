package writer

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow/ipc"

	"github.com/logflow/sweep/internal/model"
)

// ArrowWriter writes events to an Arrow IPC file.
type ArrowWriter struct {
	cfg     Config
	writer  *ipc.FileWriter
	batch   *batcher
	written int64
	closed  bool
}

// NewArrowWriter creates an Arrow IPC file writer on output. The footer
// is written on Close, so output must be seekable.
func NewArrowWriter(output io.WriteSeeker, cfg Config) (*ArrowWriter, error) {
	batch := newBatcher(cfg.Fields)
	writer, err := ipc.NewFileWriter(output, ipc.WithSchema(batch.schema))
	if err != nil {
		batch.release()
		return nil, fmt.Errorf("failed to create arrow writer: %w", err)
	}
	return &ArrowWriter{cfg: cfg, writer: writer, batch: batch}, nil
}

// WriteEvent implements Writer.
func (w *ArrowWriter) WriteEvent(ctx context.Context, ev *model.Event) error {
	w.batch.append(ev)
	w.written++
	if w.batch.rows >= w.cfg.BatchSize {
		return w.batch.flush(w.writer.Write)
	}
	return nil
}

// RowsWritten implements Writer.
func (w *ArrowWriter) RowsWritten() int64 {
	return w.written
}

// Close implements Writer.
func (w *ArrowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.batch.release()

	if err := w.batch.flush(w.writer.Write); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}
