package writer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/sweep/internal/model"
)

// DuckDBWriter writes events into a table of a DuckDB database file.
type DuckDBWriter struct {
	cfg     Config
	db      *sql.DB
	stmt    *sql.Stmt
	batch   []*model.Event
	written int64
	closed  bool
}

// NewDuckDBWriter creates the events table in the database at path,
// replacing an existing table of the same name.
func NewDuckDBWriter(path string, cfg Config) (*DuckDBWriter, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	table := quoteIdent(cfg.Table)
	cols := []string{
		quoteIdent(model.ColumnRun) + " BIGINT",
		quoteIdent(model.ColumnEvent) + " BIGINT",
		quoteIdent(model.ColumnWeight) + " DOUBLE",
	}
	marks := []string{"?", "?", "?"}
	for _, f := range cfg.Fields {
		cols = append(cols, quoteIdent(f)+" DOUBLE")
		marks = append(marks, "?")
	}

	ddl := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(cols, ", "))
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := db.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(marks, ", ")))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &DuckDBWriter{
		cfg:   cfg,
		db:    db,
		stmt:  stmt,
		batch: make([]*model.Event, 0, cfg.BatchSize),
	}, nil
}

// WriteEvent implements Writer. The event is copied.
func (w *DuckDBWriter) WriteEvent(ctx context.Context, ev *model.Event) error {
	cp := *ev
	cp.Fields = make(map[string]float64, len(w.cfg.Fields))
	for _, name := range w.cfg.Fields {
		if v, ok := ev.Fields[name]; ok {
			cp.Fields[name] = v
		}
	}
	w.batch = append(w.batch, &cp)

	if len(w.batch) >= w.cfg.BatchSize {
		return w.flushBatch(ctx)
	}
	return nil
}

// flushBatch inserts the current batch in one transaction.
func (w *DuckDBWriter) flushBatch(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.StmtContext(ctx, w.stmt)
	args := make([]any, 3+len(w.cfg.Fields))
	for _, ev := range w.batch {
		args[0], args[1], args[2] = ev.Run, ev.Number, ev.Weight
		for i, name := range w.cfg.Fields {
			if v, ok := ev.Fields[name]; ok {
				args[3+i] = v
			} else {
				args[3+i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.written += int64(len(w.batch))
	w.batch = w.batch[:0]
	return nil
}

// RowsWritten implements Writer. Buffered events count once flushed.
func (w *DuckDBWriter) RowsWritten() int64 {
	return w.written + int64(len(w.batch))
}

// Close implements Writer.
func (w *DuckDBWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.flushBatch(context.Background())
	w.stmt.Close()
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
