package metrics

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
)

// ErrRunNotFound is returned by Store.Run for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one finished simulation as persisted in the store.
type Run struct {
	ID         string
	Scenario   string
	Planner    string
	StopReason string
	Ticks      int
	StartedAt  time.Time
	Summary    Summary
}

// Store keeps run summaries in SQLite for later reporting.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			planner TEXT NOT NULL,
			stop_reason TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			deliveries_attempted INTEGER NOT NULL,
			deliveries_succeeded INTEGER NOT NULL,
			deliveries_failed INTEGER NOT NULL,
			collisions INTEGER NOT NULL,
			battery_failures INTEGER NOT NULL,
			summary_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun inserts or replaces a run row.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	raw, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (
			id, scenario, planner, stop_reason, ticks, started_at,
			deliveries_attempted, deliveries_succeeded, deliveries_failed,
			collisions, battery_failures, summary_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Scenario, r.Planner, r.StopReason, r.Ticks,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.Summary.DeliveriesAttempted, r.Summary.DeliveriesSucceeded, r.Summary.DeliveriesFailed,
		r.Summary.Collisions, r.Summary.BatteryFailures, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r       Run
		started string
		raw     string
	)
	if err := sc.Scan(&r.ID, &r.Scenario, &r.Planner, &r.StopReason, &r.Ticks, &started, &raw); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", r.ID, err)
	}
	r.StartedAt = t
	if err := json.Unmarshal([]byte(raw), &r.Summary); err != nil {
		return Run{}, fmt.Errorf("run %s: summary: %w", r.ID, err)
	}
	return r, nil
}

const runColumns = `id, scenario, planner, stop_reason, ticks, started_at, summary_json`

// Run loads a single run by id.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Runs lists stored runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
