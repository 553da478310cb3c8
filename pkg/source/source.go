// Package source opens event sources for the replay loop.
//
// Every source is random access by index: Count reports how many events the
// source holds and Load overwrites an event view with the event at an index.
// Sources are opened once per run and are not safe for concurrent use.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/logflow/sweep/internal/model"
)

// Source is a closable random-access event source.
type Source interface {
	Count(ctx context.Context) (int64, error)
	Load(ctx context.Context, index int64, ev *model.Event) error
	io.Closer
}

// Format identifies an on-disk event format.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatArrow   Format = "arrow"
	FormatParquet Format = "parquet"
	FormatDuckDB  Format = "duckdb"
	FormatXLSX    Format = "xlsx"
	FormatUnknown Format = "unknown"
)

// DefaultTable is the DuckDB table read when none is configured.
const DefaultTable = "events"

// Options configures how sources are opened.
type Options struct {
	// Table is the DuckDB table holding events.
	Table string

	// Sheet is the xlsx sheet; the first sheet when empty.
	Sheet string

	// S3 configures access to s3:// inputs.
	S3 S3Options

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// DetectFormat guesses the format from a file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".arrow", ".ipc", ".feather":
		return FormatArrow
	case ".parquet":
		return FormatParquet
	case ".duckdb", ".db":
		return FormatDuckDB
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// Open opens uri, a local path or an s3://bucket/key URL, as a Source.
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("no input given")
	}
	if strings.HasPrefix(uri, "s3://") {
		return OpenS3(ctx, uri, opts)
	}
	return OpenFile(ctx, uri, opts)
}

// OpenFile opens a local file by extension.
func OpenFile(ctx context.Context, path string, opts Options) (Source, error) {
	opts.logger().Debug("opening source", "path", path)

	switch DetectFormat(path) {
	case FormatJSONL:
		return opened(OpenJSONL(path))
	case FormatArrow:
		return opened(OpenArrow(path))
	case FormatParquet:
		return opened(OpenParquet(ctx, path))
	case FormatDuckDB:
		return opened(OpenDuckDB(ctx, path, opts.Table))
	case FormatXLSX:
		return opened(OpenXLSX(path, opts.Sheet))
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

// opened keeps a failed open from yielding a non-nil Source.
func opened[S Source](s S, err error) (Source, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// checkIndex validates index against a known count.
func checkIndex(index, count int64) error {
	if index < 0 || index >= count {
		return fmt.Errorf("event %d out of range [0, %d)", index, count)
	}
	return nil
}

// setValue routes a decoded column value into the event view.
// Numbers and booleans are numeric fields, strings are labels and nulls are
// skipped.
func setValue(ev *model.Event, column string, v any) error {
	switch x := v.(type) {
	case nil:
	case float64:
		ev.SetNumber(column, x)
	case float32:
		ev.SetNumber(column, float64(x))
	case int:
		ev.SetInt(column, int64(x))
	case int8:
		ev.SetInt(column, int64(x))
	case int16:
		ev.SetInt(column, int64(x))
	case int32:
		ev.SetInt(column, int64(x))
	case int64:
		ev.SetInt(column, x)
	case uint:
		return setUint(ev, column, uint64(x))
	case uint8:
		ev.SetInt(column, int64(x))
	case uint16:
		ev.SetInt(column, int64(x))
	case uint32:
		ev.SetInt(column, int64(x))
	case uint64:
		return setUint(ev, column, x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			ev.SetInt(column, i)
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		ev.SetNumber(column, f)
	case bool:
		if x {
			ev.SetNumber(column, 1)
		} else {
			ev.SetNumber(column, 0)
		}
	case string:
		ev.SetLabel(column, x)
	case []byte:
		ev.SetLabel(column, string(x))
	default:
		return fmt.Errorf("column %q: unsupported value type %T", column, v)
	}
	return nil
}

// setUint stores an unsigned value. Run and event numbers must fit in int64.
func setUint(ev *model.Event, column string, x uint64) error {
	if x <= math.MaxInt64 {
		ev.SetInt(column, int64(x))
		return nil
	}
	if column == model.ColumnRun || column == model.ColumnEvent {
		return fmt.Errorf("column %q: %d overflows int64", column, x)
	}
	ev.SetNumber(column, float64(x))
	return nil
}
