package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/TobiSchelling/decayclock/internal/event"
	"github.com/TobiSchelling/decayclock/internal/verify"
)

const (
	maxServiceName        = 100
	maxServiceDescription = 500
	maxServiceCategory    = 50
	maxSlug               = 50
	maxEventTitle         = 200
	maxEventDescription   = 2000
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of other characters into a
// single hyphen and caps the result at 50 characters.
func Slugify(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	return truncate(s, maxSlug)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SaveResearch stores a verified research result. The service is upserted by
// slug and its previous events are replaced, all in one transaction.
func (db *DB) SaveResearch(svc event.Service, events []verify.Event) (int64, error) {
	slug := Slugify(svc.Name)
	if slug == "" {
		return 0, fmt.Errorf("service name %q yields an empty slug", svc.Name)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO services (name, slug, description, category) VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			updated_at = datetime('now')`,
		truncate(svc.Name, maxServiceName), slug,
		truncate(svc.Description, maxServiceDescription),
		truncate(svc.Category, maxServiceCategory),
	)
	if err != nil {
		return 0, fmt.Errorf("upserting service: %w", err)
	}

	var serviceID int64
	if err := tx.QueryRow("SELECT id FROM services WHERE slug = ?", slug).Scan(&serviceID); err != nil {
		return 0, fmt.Errorf("reading service id: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM events WHERE service_id = ?", serviceID); err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO events (service_id, title, description, event_date, severity, event_type,
			source_url, confidence, agreed_by, consensus_score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
	)
	if err != nil {
		return 0, fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		agreed, err := json.Marshal(e.Verification.AgreedBy)
		if err != nil {
			return 0, err
		}
		_, err = stmt.Exec(
			serviceID,
			truncate(e.Title, maxEventTitle),
			truncate(e.Description, maxEventDescription),
			e.EventDate,
			string(e.Severity),
			string(e.Category),
			e.SourceURL,
			string(e.Verification.Confidence),
			string(agreed),
			e.Verification.ConsensusScore,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting event %q: %w", e.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return serviceID, nil
}

// GetService returns a service by ID, or nil if it does not exist.
func (db *DB) GetService(id int64) (*Service, error) {
	return scanService(db.conn.QueryRow(
		"SELECT id, name, slug, description, category, created_at, updated_at FROM services WHERE id = ?", id,
	))
}

// GetServiceBySlug returns a service by slug, or nil if it does not exist.
func (db *DB) GetServiceBySlug(slug string) (*Service, error) {
	return scanService(db.conn.QueryRow(
		"SELECT id, name, slug, description, category, created_at, updated_at FROM services WHERE slug = ?", slug,
	))
}

// AllServices returns every service ordered by name.
func (db *DB) AllServices() ([]Service, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, slug, description, category, created_at, updated_at FROM services ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Category, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// RecentServices returns the most recently updated services with their event
// counts.
func (db *DB) RecentServices(limit int) ([]ServiceSummary, error) {
	rows, err := db.conn.Query(
		`SELECT s.name, s.slug, COUNT(e.id), s.updated_at
		FROM services s LEFT JOIN events e ON e.service_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC, s.id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceSummary
	for rows.Next() {
		var s ServiceSummary
		if err := rows.Scan(&s.Name, &s.Slug, &s.EventCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanService(row *sql.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Category, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
