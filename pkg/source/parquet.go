package source

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/sweep/internal/model"
)

// parquetChunk is the record size used to slice the decoded table.
const parquetChunk = 8192

// Parquet reads a Parquet file into memory as Arrow records.
type Parquet struct {
	records
}

// OpenParquet reads the whole table of a Parquet file.
func OpenParquet(ctx context.Context, path string) (*Parquet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(nil),
		pqarrow.ArrowReadProperties{Parallel: true, BatchSize: parquetChunk}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table: %w", err)
	}
	defer table.Release()

	s := &Parquet{}
	tr := array.NewTableReader(table, parquetChunk)
	defer tr.Release()
	for tr.Next() {
		s.add(tr.Record())
	}
	if err := tr.Err(); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *Parquet) Count(ctx context.Context) (int64, error) {
	return s.count(), nil
}

func (s *Parquet) Load(ctx context.Context, index int64, ev *model.Event) error {
	return s.load(index, ev)
}

func (s *Parquet) Close() error {
	s.release()
	return nil
}
