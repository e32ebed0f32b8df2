// Package store persists processing results and backend journals in SQLite.
package store

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

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id             TEXT PRIMARY KEY,
	intake_id      TEXT NOT NULL,
	mode_id        TEXT NOT NULL,
	success        INTEGER NOT NULL,
	digest         TEXT,
	change_count   INTEGER NOT NULL DEFAULT 0,
	processing_ms  INTEGER NOT NULL DEFAULT 0,
	payload        TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
CREATE INDEX IF NOT EXISTS idx_results_intake ON results(intake_id);

CREATE TABLE IF NOT EXISTS journal (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      TEXT NOT NULL,
	adapter     TEXT NOT NULL,
	text        TEXT NOT NULL,
	changes     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_job ON journal(job_id);
`

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps a SQLite database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// ResultRecord is one persisted processing result.
type ResultRecord struct {
	ID          string
	IntakeID    string
	ModeID      string
	Success     bool
	Digest      string
	ChangeCount int
	Processing  time.Duration
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// SaveResult inserts or replaces a result.
func (s *Store) SaveResult(ctx context.Context, r ResultRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if len(r.Payload) == 0 {
		r.Payload = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, intake_id, mode_id, success, digest, change_count, processing_ms, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   success = excluded.success, digest = excluded.digest, change_count = excluded.change_count,
		   processing_ms = excluded.processing_ms, payload = excluded.payload`,
		r.ID, r.IntakeID, r.ModeID, boolInt(r.Success), r.Digest, r.ChangeCount,
		r.Processing.Milliseconds(), string(r.Payload), r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.ID, err)
	}
	return nil
}

// GetResult loads a result by id.
func (s *Store) GetResult(ctx context.Context, id string) (ResultRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, intake_id, mode_id, success, digest, change_count, processing_ms, payload, created_at
		 FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ResultRecord{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return r, err
}

// History returns up to limit results, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, intake_id, mode_id, success, digest, change_count, processing_ms, payload, created_at
		 FROM results ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (ResultRecord, error) {
	var (
		r       ResultRecord
		success int
		digest  sql.NullString
		ms      int64
		payload string
		created string
	)
	if err := sc.Scan(&r.ID, &r.IntakeID, &r.ModeID, &success, &digest, &r.ChangeCount, &ms, &payload, &created); err != nil {
		return ResultRecord{}, err
	}
	r.Success = success != 0
	r.Digest = digest.String
	r.Processing = time.Duration(ms) * time.Millisecond
	r.Payload = json.RawMessage(payload)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

// JournalEntry records one job executed by the journal backend.
type JournalEntry struct {
	Seq       int64
	JobID     string
	Adapter   string
	Text      string
	Changes   json.RawMessage
	CreatedAt time.Time
}

// AppendJournal stores an entry and returns its sequence number.
func (s *Store) AppendJournal(ctx context.Context, e JournalEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if len(e.Changes) == 0 {
		e.Changes = json.RawMessage("[]")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (job_id, adapter, text, changes, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.JobID, e.Adapter, e.Text, string(e.Changes), e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("append journal: %w", err)
	}
	return res.LastInsertId()
}

// Journal returns the entries for jobID in insertion order. An empty jobID
// returns every entry.
func (s *Store) Journal(ctx context.Context, jobID string) ([]JournalEntry, error) {
	query := `SELECT seq, job_id, adapter, text, changes, created_at FROM journal`
	var args []any
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var changes, created string
		if err := rows.Scan(&e.Seq, &e.JobID, &e.Adapter, &e.Text, &changes, &created); err != nil {
			return nil, err
		}
		e.Changes = json.RawMessage(changes)
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns row counts per table.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, 2)
	for _, table := range []string{"results", "journal"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
