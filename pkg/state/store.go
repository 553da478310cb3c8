// Package state provides the persistent run history.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/sweep/pkg/report"
)

// Store manages persistent state.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run is one row of the run history.
type Run struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Input          string    `json:"input"`
	Analysis       string    `json:"analysis,omitempty"`
	Bound          int64     `json:"bound"`
	Processed      int64     `json:"processed"`
	Variations     int       `json:"variations"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	EventsPerSec   float64   `json:"events_per_sec"`
	Code           string    `json:"code,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

// Stats aggregates the run history.
type Stats struct {
	Total        int64
	Completed    int64
	Failed       int64
	MeanRate     float64
	EventsProcessed int64
}

// NewStore opens (creating if needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			input TEXT NOT NULL,
			analysis TEXT,
			bound BIGINT,
			processed BIGINT,
			variations INTEGER,
			elapsed_seconds DOUBLE,
			events_per_sec DOUBLE,
			code TEXT,
			error TEXT,
			summary VARCHAR,
			started_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run summary. Recording the same id again replaces it.
func (s *Store) Record(ctx context.Context, sum *report.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, status, input, analysis, bound, processed, variations,
			elapsed_seconds, events_per_sec, code, error, summary, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sum.ID, string(sum.Status), sum.Input, sum.Analysis, sum.Bound, sum.Processed,
		len(sum.Variations), sum.ElapsedSeconds, sum.EventsPerSec, sum.Code, sum.Error,
		string(summaryJSON), sum.Started)

	return err
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, input, COALESCE(analysis, ''), bound, processed, variations,
		       elapsed_seconds, events_per_sec, COALESCE(code, ''), COALESCE(error, ''), started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(
			&r.ID, &r.Status, &r.Input, &r.Analysis, &r.Bound, &r.Processed, &r.Variations,
			&r.ElapsedSeconds, &r.EventsPerSec, &r.Code, &r.Error, &r.StartedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Summary returns the full stored summary of a run.
func (s *Store) Summary(ctx context.Context, id string) (*report.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		return nil, err
	}

	var sum report.Summary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return nil, fmt.Errorf("failed to decode summary of %s: %w", id, err)
	}
	return &sum, nil
}

// Stats returns aggregate statistics over the history.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COALESCE(AVG(events_per_sec) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(SUM(processed), 0)
		FROM runs
	`).Scan(&st.Total, &st.Completed, &st.Failed, &st.MeanRate, &st.EventsProcessed)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Cleanup removes runs older than the retention period.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
