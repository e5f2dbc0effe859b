// Package history keeps an optional SQLite index of compose runs. It is a
// side record for operators; nothing in the deterministic outputs reads it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"composer/internal/compose"
	"composer/internal/logging"
)

// Run is one recorded compose run.
type Run struct {
	ID         string    `json:"id"`
	Profile    string    `json:"profile"`
	State      string    `json:"state"`
	DryRun     bool      `json:"dryRun"`
	Score      float64   `json:"score"`
	Pass       int       `json:"pass"`
	Total      int       `json:"total"`
	Threshold  float64   `json:"threshold"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// RunFile is the per-file outcome of a recorded run.
type RunFile struct {
	File        string   `json:"file"`
	OK          bool     `json:"ok"`
	Lines       int      `json:"lines"`
	Required    int      `json:"required"`
	Changed     bool     `json:"changed"`
	ContentHash string   `json:"contentHash"`
	Failed      []string `json:"failed,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used for recorded_at.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

// NewStore creates or opens the history database at dbPath.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		state TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL,
		pass INTEGER NOT NULL,
		total INTEGER NOT NULL,
		threshold REAL NOT NULL,
		error TEXT,
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_recorded ON runs(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile);

	CREATE TABLE IF NOT EXISTS run_files (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		file TEXT NOT NULL,
		ok INTEGER NOT NULL,
		lines INTEGER NOT NULL,
		required INTEGER NOT NULL,
		changed INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		failed_json TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordRun stores a finished compose run and its per-file results.
func (s *Store) RecordRun(ctx context.Context, sum *compose.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, profile, state, dry_run, score, pass, total, threshold, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, sum.Profile, string(sum.State), sum.DryRun, sum.Score, sum.Pass, sum.Total,
		sum.Threshold, sum.Err, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for i, f := range sum.Files {
		failedJSON, _ := json.Marshal(f.Report.Failed())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_files (run_id, seq, file, ok, lines, required, changed, content_hash, failed_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, f.File, f.Report.OK, f.Report.ActualLines, f.Required, f.Changed,
			f.Report.ContentHash, string(failedJSON))
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", f.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.Get(logging.CategoryHistory).Debug("recorded run %s (%s, %d files)", id, sum.State, len(sum.Files))
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, state, dry_run, score, pass, total, threshold, error, recorded_at
		FROM runs
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.Profile, &r.State, &r.DryRun, &r.Score, &r.Pass,
			&r.Total, &r.Threshold, &errText, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunFiles returns the per-file results of a run in their original order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]RunFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT file, ok, lines, required, changed, content_hash, failed_json
		FROM run_files
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run files: %w", err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		var failedJSON sql.NullString
		if err := rows.Scan(&f.File, &f.OK, &f.Lines, &f.Required, &f.Changed,
			&f.ContentHash, &failedJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		if failedJSON.Valid {
			json.Unmarshal([]byte(failedJSON.String), &f.Failed)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
