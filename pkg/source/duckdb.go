package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/sweep/internal/model"
)

// duckdbBlock is the number of rows fetched per query.
const duckdbBlock = 4096

// DuckDB reads events from a table of a DuckDB database in rowid order.
// Rows are fetched a block at a time so a sequential replay issues one
// query per block rather than one per event.
type DuckDB struct {
	db    *sql.DB
	table string
	count int64
	block *sql.Stmt

	start   int64
	columns []string
	rows    [][]any
}

// OpenDuckDB opens path read-only and prepares the block query on table.
func OpenDuckDB(ctx context.Context, path, table string) (*DuckDB, error) {
	if table == "" {
		table = DefaultTable
	}

	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	s := &DuckDB{db: db, table: table}
	ident := quoteIdent(table)

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident).Scan(&s.count); err != nil {
		db.Close()
		return nil, fmt.Errorf("count rows of %s: %w", table, err)
	}

	s.block, err = db.PrepareContext(ctx, "SELECT * FROM "+ident+" ORDER BY rowid LIMIT ? OFFSET ?")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare block query on %s: %w", table, err)
	}
	return s, nil
}

func (s *DuckDB) Count(ctx context.Context) (int64, error) {
	return s.count, nil
}

func (s *DuckDB) Load(ctx context.Context, index int64, ev *model.Event) error {
	if err := checkIndex(index, s.count); err != nil {
		return err
	}

	if index < s.start || index >= s.start+int64(len(s.rows)) {
		if err := s.fetch(ctx, index-index%duckdbBlock); err != nil {
			return fmt.Errorf("event %d: %w", index, err)
		}
		if index >= s.start+int64(len(s.rows)) {
			return fmt.Errorf("event %d: no row in %s", index, s.table)
		}
	}

	values := s.rows[index-s.start]
	for i, column := range s.columns {
		if err := setValue(ev, column, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// fetch replaces the cached block with the rows starting at offset.
func (s *DuckDB) fetch(ctx context.Context, offset int64) error {
	rows, err := s.block.QueryContext(ctx, duckdbBlock, offset)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	block := make([][]any, 0, duckdbBlock)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			if t, ok := v.(time.Time); ok {
				values[i] = t.UTC().Format(time.RFC3339Nano)
			}
		}
		block = append(block, values)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.start = offset
	s.columns = columns
	s.rows = block
	return nil
}

func (s *DuckDB) Close() error {
	if s.block != nil {
		s.block.Close()
	}
	s.rows = nil
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
