package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const providerColumns = `id, name, base_url, api_key_encrypted, model, enabled, priority,
	max_tokens, temperature, created_at, updated_at`

// InsertProvider stores a new provider and returns its generated ID.
func (db *DB) InsertProvider(p Provider) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := db.conn.Exec(
		`INSERT INTO ai_providers (id, name, base_url, api_key_encrypted, model, enabled, priority, max_tokens, temperature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.BaseURL, p.APIKeyEncrypted, p.Model, p.Enabled, p.Priority, p.MaxTokens, p.Temperature,
	)
	if err != nil {
		return "", fmt.Errorf("inserting provider: %w", err)
	}
	return p.ID, nil
}

// UpdateProvider overwrites a provider's settings. An empty APIKeyEncrypted
// keeps the stored key.
func (db *DB) UpdateProvider(p Provider) error {
	query := `UPDATE ai_providers SET name = ?, base_url = ?, model = ?, enabled = ?, priority = ?,
		max_tokens = ?, temperature = ?, updated_at = datetime('now')`
	args := []any{p.Name, p.BaseURL, p.Model, p.Enabled, p.Priority, p.MaxTokens, p.Temperature}
	if p.APIKeyEncrypted != "" {
		query += ", api_key_encrypted = ?"
		args = append(args, p.APIKeyEncrypted)
	}
	query += " WHERE id = ?"
	args = append(args, p.ID)

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	return expectOneRow(res, "provider", p.ID)
}

// DeleteProvider removes a provider.
func (db *DB) DeleteProvider(id string) error {
	res, err := db.conn.Exec("DELETE FROM ai_providers WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "provider", id)
}

// ToggleProvider flips the enabled state of a provider.
func (db *DB) ToggleProvider(id string) error {
	res, err := db.conn.Exec(
		"UPDATE ai_providers SET enabled = NOT enabled, updated_at = datetime('now') WHERE id = ?", id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, "provider", id)
}

// GetProvider returns a provider by ID, or nil if it does not exist.
func (db *DB) GetProvider(id string) (*Provider, error) {
	p, err := scanProvider(db.conn.QueryRow("SELECT "+providerColumns+" FROM ai_providers WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListProviders returns all providers ordered by priority.
func (db *DB) ListProviders() ([]Provider, error) {
	return db.queryProviders("SELECT " + providerColumns + " FROM ai_providers ORDER BY priority ASC, created_at ASC")
}

// EnabledProviders returns enabled providers ordered by priority.
func (db *DB) EnabledProviders() ([]Provider, error) {
	return db.queryProviders(
		"SELECT " + providerColumns + " FROM ai_providers WHERE enabled = 1 ORDER BY priority ASC, created_at ASC",
	)
}

func (db *DB) queryProviders(query string, args ...any) ([]Provider, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func scanProvider(row scanner) (*Provider, error) {
	var p Provider
	var enabled int
	if err := row.Scan(&p.ID, &p.Name, &p.BaseURL, &p.APIKeyEncrypted, &p.Model, &enabled, &p.Priority,
		&p.MaxTokens, &p.Temperature, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Enabled = enabled != 0
	return &p, nil
}
