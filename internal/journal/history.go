// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/onenote2epub/pkg/types"
)

const defaultHistoryLimit = 20

// Run is one journal row with document counts.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Root      string    `json:"root" yaml:"root"`
	Started   time.Time `json:"started" yaml:"started"`
	Finished  time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
	Status    string    `json:"status" yaml:"status"`
	Books     int       `json:"books" yaml:"books"`
	Converted int       `json:"converted" yaml:"converted"`
	Failed    int       `json:"failed" yaml:"failed"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Duration is zero for runs that have not finished.
func (r Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// History returns the most recent runs, newest first. A non-positive limit
// selects the default of 20.
func (s *Store) History(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.queryRuns(ctx, "", "LIMIT ?", limit)
}

const runSelect = `
	SELECT r.id, r.root, r.started_at, r.finished_at, r.status, r.books, r.message,
		COALESCE(SUM(CASE WHEN d.stage = ? AND d.status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END), 0)
	FROM runs r
	LEFT JOIN documents d ON d.run_id = r.id`

func (s *Store) queryRuns(ctx context.Context, where, tail string, args ...any) ([]Run, error) {
	query := runSelect + " " + where + " GROUP BY r.id ORDER BY r.started_at DESC " + tail
	params := append([]any{
		string(types.StageConvert), string(types.ConversionDone), string(types.ConversionFailed),
	}, args...)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  sql.NullString
			finished sql.NullString
			message  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Root, &started, &finished, &r.Status, &r.Books, &message,
			&r.Converted, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseTime(started)
		r.Finished = parseTime(finished)
		r.Message = message.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Documents returns the document records of a run in insertion order.
func (s *Store) Documents(ctx context.Context, runID string) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, source, output, status, detail, finished_at
		FROM documents WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			d                     types.Document
			stage, status         string
			output, detail, ended sql.NullString
		)
		if err := rows.Scan(&stage, &d.Source, &output, &status, &detail, &ended); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Stage = types.Stage(stage)
		d.Status = types.ConversionStatus(status)
		d.Output = output.String
		d.Detail = detail.String
		d.Finished = parseTime(ended)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RunReport is a run together with its documents, as exported.
type RunReport struct {
	Run       Run              `json:"run" yaml:"run"`
	Documents []types.Document `json:"documents" yaml:"documents"`
}

// Report loads the run with the given ID and its documents.
func (s *Store) Report(ctx context.Context, runID string) (RunReport, error) {
	runs, err := s.queryRuns(ctx, "WHERE r.id = ?", "", runID)
	if err != nil {
		return RunReport{}, err
	}
	if len(runs) == 0 {
		return RunReport{}, fmt.Errorf("run %s not found", runID)
	}
	docs, err := s.Documents(ctx, runID)
	if err != nil {
		return RunReport{}, err
	}
	return RunReport{Run: runs[0], Documents: docs}, nil
}

// WriteYAML writes the report as YAML.
func (r RunReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// WriteJSON writes the report as indented JSON.
func (r RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
