package infra

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

const activitySchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT
);

CREATE TABLE IF NOT EXISTS samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	mode        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	subject     TEXT NOT NULL,
	taken_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_taken_at ON samples(taken_at);
`

// Sample kinds stored in the analytics database.
const (
	KindProcess = "process"
	KindTab     = "tab"
)

// ActivityStore persists Activity Monitor samples in SQLite for later analytics.
type ActivityStore struct {
	db *sql.DB
}

// NewActivityStore opens a SQLite database and runs migrations.
func NewActivityStore(dbPath string) (*ActivityStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(activitySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &ActivityStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *ActivityStore) Close() error {
	return s.db.Close()
}

// StartSession records the beginning of an activation session.
func (s *ActivityStore) StartSession(sessionID, mode string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (session_id, mode, started_at) VALUES (?, ?, ?)`,
		sessionID, mode, at.UTC().Format(time.RFC3339),
	)
	return err
}

// EndSession marks a session as finished.
func (s *ActivityStore) EndSession(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`,
		at.UTC().Format(time.RFC3339), sessionID,
	)
	return err
}

// Record stores one row per process name and per tab title in a single transaction.
func (s *ActivityStore) Record(sample domain.ActivitySample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (session_id, mode, kind, subject, taken_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	takenAt := sample.TakenAt.UTC().Format(time.RFC3339)
	for _, name := range sample.Processes {
		if _, err := stmt.Exec(sample.SessionID, sample.Mode, KindProcess, name, takenAt); err != nil {
			return err
		}
	}
	for _, titles := range sample.Tabs {
		for _, title := range titles {
			if _, err := stmt.Exec(sample.SessionID, sample.Mode, KindTab, title, takenAt); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Summary returns the most frequently sampled subjects of kind since the given time.
func (s *ActivityStore) Summary(kind string, since time.Time, limit int) ([]domain.ActivityCount, error) {
	rows, err := s.db.Query(`
		SELECT subject, COUNT(*) AS n FROM samples
		WHERE kind = ? AND taken_at >= ?
		GROUP BY subject
		ORDER BY n DESC, subject ASC
		LIMIT ?`,
		kind, since.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityCount
	for rows.Next() {
		c := domain.ActivityCount{Kind: kind}
		if err := rows.Scan(&c.Subject, &c.Samples); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SessionCount returns how many sessions started since the given time.
func (s *ActivityStore) SessionCount(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE started_at >= ?`,
		since.UTC().Format(time.RFC3339)).Scan(&n)
	return n, err
}

var _ domain.ActivitySink = (*ActivityStore)(nil)
