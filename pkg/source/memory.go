package source

import (
	"context"

	"github.com/logflow/sweep/internal/model"
)

// Row is one event as column values.
type Row map[string]any

// Memory serves events from a slice. Used by tests and benchmarks.
type Memory struct {
	rows []Row
}

// NewMemory creates a source over rows.
func NewMemory(rows []Row) *Memory {
	return &Memory{rows: rows}
}

func (m *Memory) Count(ctx context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *Memory) Load(ctx context.Context, index int64, ev *model.Event) error {
	if err := checkIndex(index, int64(len(m.rows))); err != nil {
		return err
	}
	for column, v := range m.rows[index] {
		if err := setValue(ev, column, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
