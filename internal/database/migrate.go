package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// schemaVersion reads PRAGMA user_version.
func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func setSchemaVersion(conn *sql.DB, v int) error {
	// PRAGMA does not take bind parameters.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", v, err)
	}
	return nil
}

// hasHostedSchema reports whether the file already holds the services table
// of a hosted-database export. Such exports carry no user_version but match
// migration 1.
func hasHostedSchema(conn *sql.DB) (bool, error) {
	var n int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'services'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspecting tables: %w", err)
	}
	return n > 0, nil
}

// pending returns the migrations newer than version, in order.
func pending(version int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > version {
			out = append(out, m)
		}
	}
	return out
}

func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	// modernc/sqlite ignores user_version writes inside a transaction; the
	// DDL is idempotent so a crash before this line re-runs cleanly.
	return setSchemaVersion(conn, m.Version)
}

// migrate brings the schema up to latestVersion.
func migrate(conn *sql.DB) error {
	version, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if version == 0 {
		hosted, err := hasHostedSchema(conn)
		if err != nil {
			return err
		}
		if hosted {
			zap.L().Info("adopting hosted database export as schema version 1")
			if err := setSchemaVersion(conn, 1); err != nil {
				return err
			}
			version = 1
		}
	}

	for _, m := range pending(version) {
		zap.L().Info("applying migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description))
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}
