package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "services and events",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS services (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    slug TEXT UNIQUE NOT NULL,
    description TEXT,
    category TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    service_id INTEGER NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    event_date TEXT NOT NULL,
    severity TEXT NOT NULL CHECK(severity IN ('minor', 'moderate', 'significant', 'major', 'critical')),
    event_type TEXT NOT NULL DEFAULT 'Other',
    source_url TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_service ON events(service_id);
CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date);
CREATE INDEX IF NOT EXISTS idx_services_slug ON services(slug);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "verification columns on events",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
ALTER TABLE events ADD COLUMN confidence TEXT NOT NULL DEFAULT 'likely';
ALTER TABLE events ADD COLUMN agreed_by TEXT;
ALTER TABLE events ADD COLUMN consensus_score INTEGER NOT NULL DEFAULT 100;
ALTER TABLE events ADD COLUMN updated_at TEXT;
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "ai providers",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ai_providers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    base_url TEXT NOT NULL DEFAULT '',
    api_key_encrypted TEXT NOT NULL,
    model TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    priority INTEGER NOT NULL DEFAULT 0,
    max_tokens INTEGER NOT NULL DEFAULT 4096,
    temperature REAL NOT NULL DEFAULT 0.7,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ai_providers_priority ON ai_providers(enabled, priority);
`)
			return err
		},
	},
	{
		Version:     4,
		Description: "leads and source checks",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS leads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    source TEXT,
    platform TEXT NOT NULL,
    published_date TEXT,
    status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'researched', 'dismissed')),
    collected_at TEXT DEFAULT (datetime('now'))
);

ALTER TABLE events ADD COLUMN source_status TEXT;
ALTER TABLE events ADD COLUMN source_checked_at TEXT;

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
