// Package history persists one record per completed build so the daemon and
// the CLI `history` command can inspect recent outcomes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded build outcome.
type Entry struct {
	ID          int64     `json:"id"`
	BuildID     string    `json:"build_id"`
	Trigger     string    `json:"trigger"` // initial, cli, watch, schedule
	Outcome     string    `json:"outcome"` // success, failed, skipped
	DurationMS  int64     `json:"duration_ms"`
	OutputFiles int       `json:"output_files"`
	OutputBytes int64     `json:"output_bytes"`
	Errors      int       `json:"errors"`
	Warnings    int       `json:"warnings"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (and initializes) a build history database.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		output_files INTEGER NOT NULL,
		output_bytes INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_build_id ON builds(build_id);
	CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one build outcome.
func (s *Store) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (build_id, trigger_kind, outcome, duration_ms, output_files, output_bytes, errors, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BuildID, e.Trigger, e.Outcome, e.DurationMS, e.OutputFiles, e.OutputBytes, e.Errors, e.Warnings, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, trigger_kind, outcome, duration_ms, output_files, output_bytes, errors, warnings, created_at
		 FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByBuildID returns all entries recorded under a build ID, oldest first.
func (s *Store) ByBuildID(ctx context.Context, buildID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, trigger_kind, outcome, duration_ms, output_files, output_bytes, errors, warnings, created_at
		 FROM builds WHERE build_id = ? ORDER BY id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdUnix int64
		err := rows.Scan(&e.ID, &e.BuildID, &e.Trigger, &e.Outcome, &e.DurationMS,
			&e.OutputFiles, &e.OutputBytes, &e.Errors, &e.Warnings, &createdUnix)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
