package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/sweep/internal/model"
)

// XLSX serves the rows of one worksheet. The header row names the columns;
// cells that parse as numbers are fields and other cells are labels.
type XLSX struct {
	header []string
	rows   [][]string
}

// OpenXLSX reads sheet, or the first sheet when empty.
func OpenXLSX(path, sheet string) (*XLSX, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets found in xlsx file")
		}
		sheet = sheets[0]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	s := &XLSX{header: all[0]}
	for _, row := range all[1:] {
		if blank(row) {
			continue
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (s *XLSX) Count(ctx context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

func (s *XLSX) Load(ctx context.Context, index int64, ev *model.Event) error {
	if err := checkIndex(index, int64(len(s.rows))); err != nil {
		return err
	}

	row := s.rows[index]
	for i, column := range s.header {
		if column == "" || i >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			ev.SetNumber(column, f)
		} else {
			ev.SetLabel(column, cell)
		}
	}
	return nil
}

func (s *XLSX) Close() error {
	return nil
}
