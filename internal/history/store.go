package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tube-transcriber/internal/domain"
)

// ErrNotFound is returned when no run with the requested ID was recorded.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Entry is the summary row of one recorded run.
type Entry struct {
	RunID        string    `json:"runId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Total        int       `json:"total"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Cancelled    bool      `json:"cancelled"`
	OutputDir    string    `json:"outputDir"`
	CombinedPath string    `json:"combinedPath,omitempty"`
}

// Store persists run reports in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// initSchema creates the runs table if it doesn't exist.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		started_at    TEXT NOT NULL,
		finished_at   TEXT NOT NULL,
		total         INTEGER NOT NULL,
		succeeded     INTEGER NOT NULL,
		failed        INTEGER NOT NULL,
		cancelled     INTEGER NOT NULL DEFAULT 0,
		output_dir    TEXT NOT NULL,
		combined_path TEXT,
		report        TEXT NOT NULL
	)`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records rep, replacing any earlier row with the same run ID.
func (s *Store) Save(ctx context.Context, rep domain.RunReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("history: encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, started_at, finished_at, total, succeeded, failed, cancelled, output_dir, combined_path, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID,
		rep.StartedAt.UTC().Format(time.RFC3339Nano),
		rep.FinishedAt.UTC().Format(time.RFC3339Nano),
		rep.Total,
		rep.SuccessCount(),
		rep.FailureCount(),
		rep.Cancelled,
		rep.OutcomeDir(),
		rep.CombinedPath,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", rep.RunID, err)
	}
	return nil
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, started_at, finished_at, total, succeeded, failed, cancelled, output_dir, combined_path
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
			combined          sql.NullString
		)
		if err := rows.Scan(&e.RunID, &started, &finished, &e.Total, &e.Succeeded, &e.Failed, &e.Cancelled, &e.OutputDir, &combined); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		e.CombinedPath = combined.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full report of one run.
func (s *Store) Get(ctx context.Context, runID string) (domain.RunReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunReport{}, fmt.Errorf("history: %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("history: get %s: %w", runID, err)
	}

	var rep domain.RunReport
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return domain.RunReport{}, fmt.Errorf("history: decode %s: %w", runID, err)
	}
	return rep, nil
}
