// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal records conversion runs and per-document outcomes in a
// SQLite database. The pipeline only writes to it; the history command
// reads it back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/onenote2epub/pkg/types"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store manages the journal database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			books INTEGER NOT NULL DEFAULT 0,
			message TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			source TEXT NOT NULL,
			output TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a running run for root and returns its ID.
func (s *Store) BeginRun(ctx context.Context, root string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, root, started_at, status) VALUES (?, ?, ?, ?)`,
		id, root, formatTime(time.Now()), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordDocument appends one document outcome to run.
func (s *Store) RecordDocument(ctx context.Context, runID string, doc types.Document) error {
	finished := doc.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (run_id, stage, source, output, status, detail, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, string(doc.Stage), doc.Source, doc.Output, string(doc.Status), doc.Detail, formatTime(finished),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", doc.Source, err)
	}
	return nil
}

// FinishRun marks run finished with status, the number of books produced
// and an optional message.
func (s *Store) FinishRun(ctx context.Context, runID, status string, books int, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, books = ?, message = ? WHERE id = ?`,
		formatTime(time.Now()), status, books, message, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
