// Package database stores tracked services, their events, AI provider
// records and research leads in SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Open creates or opens the database at dbPath and migrates it.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// GetStats counts services, events, providers and leads in one round trip.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(`
SELECT
    (SELECT COUNT(*) FROM services),
    (SELECT COUNT(*) FROM events),
    (SELECT COUNT(*) FROM events WHERE confidence = 'verified'),
    (SELECT COUNT(*) FROM events WHERE confidence = 'disputed'),
    (SELECT COUNT(*) FROM events
        WHERE source_url IS NOT NULL AND source_url != '' AND source_status IS NULL),
    (SELECT COUNT(*) FROM ai_providers),
    (SELECT COUNT(*) FROM ai_providers WHERE enabled = 1),
    (SELECT COUNT(*) FROM leads WHERE status = 'open')`,
	).Scan(
		&s.Services, &s.Events, &s.VerifiedEvents, &s.DisputedEvents,
		&s.UncheckedSources, &s.Providers, &s.EnabledProviders, &s.OpenLeads,
	)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	if s.SchemaVersion, err = schemaVersion(db.conn); err != nil {
		return nil, err
	}
	return s, nil
}
