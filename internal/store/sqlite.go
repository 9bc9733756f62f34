// internal/store/sqlite.go
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Shlok909/pawsitiveAI/internal/report"
	_ "modernc.org/sqlite"
)

// SQLite is the embedded on-device Store backend.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the report database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		key TEXT PRIMARY KEY,
		created_ms INTEGER NOT NULL,
		value TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_ms);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put persists the report under a key derived from the current instant.
// A same-instant collision overwrites the earlier entry.
func (s *SQLite) Put(r *report.Report) (string, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	now := s.now()
	id := NewID(now)

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports (key, created_ms, value)
		VALUES (?, ?, ?)
	`, KeyPrefix+id, now.UnixMilli(), string(value))
	if err != nil {
		return "", err
	}

	return id, nil
}

// Get returns the report for id, or ErrNotFound.
func (s *SQLite) Get(id string) (*report.Report, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM reports WHERE key = ?`, KeyPrefix+id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var r report.Report
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns all stored reports, newest first.
func (s *SQLite) List() ([]StoredReport, error) {
	rows, err := s.db.Query(`
		SELECT key, value FROM reports
		ORDER BY created_ms DESC, key DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredReport
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}

		var r report.Report
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return nil, err
		}
		out = append(out, StoredReport{ID: key[len(KeyPrefix):], Report: r})
	}
	return out, rows.Err()
}
