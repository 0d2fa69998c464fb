// Package history records finished dispatch cycles in SQLite so operators can
// audit what was dispatched for which profile and why.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one finished cycle.
type Record struct {
	CycleID    string    `json:"cycle_id"`
	ProfileID  uint64    `json:"profile_id"`
	PivotID    uint64    `json:"pivot_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	ForcedAll  bool      `json:"forced_all"`
	Dispatched []string  `json:"dispatched"`
	Cleared    []string  `json:"cleared"`
	DurationMS float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// Store is a SQLite-backed cycle log. Use ":memory:" for an in-memory
// database, or a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens the database and ensures the schema exists.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		profile_id INTEGER NOT NULL,
		pivot_id INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL,
		forced_all INTEGER NOT NULL,
		dispatched TEXT NOT NULL,
		cleared TEXT NOT NULL,
		duration_ms REAL NOT NULL,
		started_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cycles_profile ON cycles(profile_id);
	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a finished cycle.
func (s *Store) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dispatched, err := json.Marshal(r.Dispatched)
	if err != nil {
		return fmt.Errorf("marshal dispatched: %w", err)
	}
	cleared, err := json.Marshal(r.Cleared)
	if err != nil {
		return fmt.Errorf("marshal cleared: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cycles (cycle_id, profile_id, pivot_id, outcome, reason, forced_all, dispatched, cleared, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.ProfileID, r.PivotID, r.Outcome, r.Reason, boolInt(r.ForcedAll),
		string(dispatched), string(cleared), r.DurationMS, r.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// Recent returns the most recent cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, profile_id, pivot_id, outcome, reason, forced_all, dispatched, cleared, duration_ms, started_at
		 FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByProfile returns all cycles run for a profile id, oldest first.
func (s *Store) ByProfile(ctx context.Context, profileID uint64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, profile_id, pivot_id, outcome, reason, forced_all, dispatched, cleared, duration_ms, started_at
		 FROM cycles WHERE profile_id = ? ORDER BY id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Range returns cycles started within [start, end], oldest first.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, profile_id, pivot_id, outcome, reason, forced_all, dispatched, cleared, duration_ms, started_at
		 FROM cycles WHERE started_at >= ? AND started_at <= ? ORDER BY id`,
		start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var forced int
		var dispatched, cleared string
		var started int64
		if err := rows.Scan(&r.CycleID, &r.ProfileID, &r.PivotID, &r.Outcome, &r.Reason,
			&forced, &dispatched, &cleared, &r.DurationMS, &started); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		r.ForcedAll = forced != 0
		if err := json.Unmarshal([]byte(dispatched), &r.Dispatched); err != nil {
			return nil, fmt.Errorf("unmarshal dispatched: %w", err)
		}
		if err := json.Unmarshal([]byte(cleared), &r.Cleared); err != nil {
			return nil, fmt.Errorf("unmarshal cleared: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
