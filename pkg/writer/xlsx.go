package writer

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/sweep/internal/model"
)

// XLSXWriter writes events to the first sheet of a workbook. The workbook
// is saved on Close.
type XLSXWriter struct {
	cfg     Config
	path    string
	file    *excelize.File
	stream  *excelize.StreamWriter
	err     error
	written int64
	closed  bool
}

// xlsxSheet is the sheet of a new workbook.
const xlsxSheet = "Sheet1"

// NewXLSXWriter creates a workbook writer for path.
func NewXLSXWriter(path string, cfg Config) *XLSXWriter {
	w := &XLSXWriter{cfg: cfg, path: path, file: excelize.NewFile()}

	w.stream, w.err = w.file.NewStreamWriter(xlsxSheet)
	if w.err != nil {
		return w
	}

	header := []interface{}{model.ColumnRun, model.ColumnEvent, model.ColumnWeight}
	for _, f := range cfg.Fields {
		header = append(header, f)
	}
	w.err = w.stream.SetRow("A1", header)
	return w
}

// WriteEvent implements Writer.
func (w *XLSXWriter) WriteEvent(ctx context.Context, ev *model.Event) error {
	if w.err != nil {
		return w.err
	}

	row := make([]interface{}, 0, 3+len(w.cfg.Fields))
	row = append(row, ev.Run, ev.Number, ev.Weight)
	for _, name := range w.cfg.Fields {
		if v, ok := ev.Fields[name]; ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, int(w.written)+2)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.written, err)
	}
	w.written++
	return nil
}

// RowsWritten implements Writer.
func (w *XLSXWriter) RowsWritten() int64 {
	return w.written
}

// Close implements Writer.
func (w *XLSXWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if w.err != nil {
		return w.err
	}
	if err := w.stream.Flush(); err != nil {
		return err
	}
	return w.file.SaveAs(w.path)
}
