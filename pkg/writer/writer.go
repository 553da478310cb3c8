// Package writer writes events to the file formats sweep can replay.
package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/logflow/sweep/internal/model"
)

// Writer writes events to an output format. Writers are not safe for
// concurrent use.
type Writer interface {
	// WriteEvent appends one event.
	WriteEvent(ctx context.Context, ev *model.Event) error

	// RowsWritten returns the number of events written so far.
	RowsWritten() int64

	// Close flushes buffered events and releases resources.
	Close() error
}

// Config holds writer configuration.
type Config struct {
	// Fields are the numeric columns written after run, event and weight.
	// Events lacking a field get a null (or empty) cell. Labels are not written.
	Fields []string

	// BatchSize is the number of events per record batch or transaction.
	BatchSize int

	// Compression type for Parquet output.
	Compression CompressionType

	// Table receives the events in DuckDB output.
	Table string
}

// CompressionType represents Parquet compression options.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
)

// String returns the compression type name.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompression parses a compression type string.
func ParseCompression(s string) CompressionType {
	switch strings.ToLower(s) {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   8192,
		Compression: CompressionSnappy,
		Table:       "events",
	}
}

// Create opens a writer for path chosen by its extension.
func Create(path string, cfg Config) (Writer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Table == "" {
		cfg.Table = DefaultConfig().Table
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".duckdb" || ext == ".db" {
		return created(NewDuckDBWriter(path, cfg))
	}
	if ext == ".xlsx" {
		return NewXLSXWriter(path, cfg), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var w Writer
	switch ext {
	case ".jsonl", ".ndjson":
		w = NewJSONLWriter(f, cfg)
	case ".arrow", ".ipc", ".feather":
		w, err = NewArrowWriter(f, cfg)
	case ".parquet":
		w, err = NewParquetWriter(f, cfg)
	default:
		err = fmt.Errorf("unsupported output format %q", ext)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &fileWriter{Writer: w, file: f}, nil
}

func created[W Writer](w W, err error) (Writer, error) {
	if err != nil {
		return nil, err
	}
	return w, nil
}

// fileWriter closes the file after the format writer.
type fileWriter struct {
	Writer
	file *os.File
}

func (w *fileWriter) Close() error {
	err := w.Writer.Close()
	// Some format writers close their sink themselves.
	if cerr := w.file.Close(); err == nil && !errors.Is(cerr, os.ErrClosed) {
		err = cerr
	}
	return err
}
