package source

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/logflow/sweep/internal/model"
)

// Arrow reads an Arrow IPC file. All record batches are loaded at open.
type Arrow struct {
	file   *os.File
	reader *ipc.FileReader
	records
}

// OpenArrow opens an Arrow IPC file.
func OpenArrow(path string) (*Arrow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	s := &Arrow{file: f, reader: reader}
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.RecordAt(i)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("read record batch %d: %w", i, err)
		}
		s.add(rec)
		rec.Release()
	}
	return s, nil
}

func (s *Arrow) Count(ctx context.Context) (int64, error) {
	return s.count(), nil
}

func (s *Arrow) Load(ctx context.Context, index int64, ev *model.Event) error {
	return s.load(index, ev)
}

func (s *Arrow) Close() error {
	s.release()
	if err := s.reader.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
