// Package runstore persists finished workflow runs so the gateway can
// serve them back after the fact.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/mofflow/pkg/workflow"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Run is one persisted workflow execution.
type Run struct {
	ID        string                `json:"id"`
	ThreadID  string                `json:"thread_id,omitempty"`
	Request   string                `json:"request"`
	Terminal  string                `json:"terminal"`
	Plan      []string              `json:"plan,omitempty"`
	Results   []workflow.StepResult `json:"results,omitempty"`
	Report    string                `json:"report,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// Store is a SQLite-backed run archive.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if necessary) the run store at the given path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS workflow_runs (
		id TEXT PRIMARY KEY,
		thread_id TEXT,
		request TEXT NOT NULL,
		terminal TEXT NOT NULL,
		plan_json TEXT,
		results_json TEXT,
		report TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON workflow_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_thread ON workflow_runs(thread_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize run store schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists one run.
func (s *Store) Save(run *Run) error {
	planJSON, err := json.Marshal(run.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO workflow_runs (id, thread_id, request, terminal, plan_json, results_json, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ThreadID, run.Request, run.Terminal,
		string(planJSON), string(resultsJSON), run.Report, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// Get fetches one run by id. A missing run returns sql.ErrNoRows.
func (s *Store) Get(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, thread_id, request, terminal, plan_json, results_json, report, created_at
		 FROM workflow_runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRecent returns the newest runs, most recent first.
func (s *Store) ListRecent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, thread_id, request, terminal, plan_json, results_json, report, created_at
		 FROM workflow_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteOlderThan removes runs created before the cutoff and reports how
// many were deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM workflow_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var planJSON, resultsJSON string
	if err := row.Scan(
		&run.ID, &run.ThreadID, &run.Request, &run.Terminal,
		&planJSON, &resultsJSON, &run.Report, &run.CreatedAt,
	); err != nil {
		return nil, err
	}

	if planJSON != "" {
		if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan for run %s: %w", run.ID, err)
		}
	}
	if resultsJSON != "" {
		if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results for run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
