package writer

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/sweep/internal/model"
)

// ParquetWriter writes events to Parquet format using Apache Arrow.
type ParquetWriter struct {
	cfg     Config
	writer  *pqarrow.FileWriter
	batch   *batcher
	written int64
	closed  bool
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(output io.Writer, cfg Config) (*ParquetWriter, error) {
	var codec compress.Compression
	switch cfg.Compression {
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionGzip:
		codec = compress.Codecs.Gzip
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(false),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	batch := newBatcher(cfg.Fields)
	writer, err := pqarrow.NewFileWriter(batch.schema, output, writerProps, arrowProps)
	if err != nil {
		batch.release()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	return &ParquetWriter{cfg: cfg, writer: writer, batch: batch}, nil
}

// WriteEvent implements Writer.
func (w *ParquetWriter) WriteEvent(ctx context.Context, ev *model.Event) error {
	w.batch.append(ev)
	w.written++
	if w.batch.rows >= w.cfg.BatchSize {
		return w.batch.flush(w.writer.Write)
	}
	return nil
}

// RowsWritten implements Writer.
func (w *ParquetWriter) RowsWritten() int64 {
	return w.written
}

// Close implements Writer.
func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.batch.release()

	if err := w.batch.flush(w.writer.Write); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
