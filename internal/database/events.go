package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const eventColumns = `e.id, e.service_id, e.title, e.description, e.event_date, e.severity, e.event_type,
	e.source_url, e.confidence, e.agreed_by, e.consensus_score, e.source_status, e.created_at`

// AllEvents returns every event ordered by date.
func (db *DB) AllEvents() ([]Event, error) {
	rows, err := db.conn.Query(
		"SELECT " + eventColumns + " FROM events e ORDER BY e.event_date ASC, e.id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// EventsWithService returns every event joined with its service, ordered by
// date.
func (db *DB) EventsWithService() ([]EventWithService, error) {
	return db.queryEventsWithService(
		"SELECT " + eventColumns + `, s.name, s.slug
		FROM events e JOIN services s ON s.id = e.service_id
		ORDER BY e.event_date ASC, e.id ASC`,
	)
}

// EventsForService returns one service's events ordered by date.
func (db *DB) EventsForService(serviceID int64) ([]EventWithService, error) {
	return db.queryEventsWithService(
		"SELECT "+eventColumns+`, s.name, s.slug
		FROM events e JOIN services s ON s.id = e.service_id
		WHERE e.service_id = ?
		ORDER BY e.event_date ASC, e.id ASC`, serviceID,
	)
}

// EventsWithSources returns events that cite a source URL, joined with their
// service.
func (db *DB) EventsWithSources() ([]EventWithService, error) {
	return db.queryEventsWithService(
		"SELECT " + eventColumns + `, s.name, s.slug
		FROM events e JOIN services s ON s.id = e.service_id
		WHERE e.source_url IS NOT NULL AND e.source_url != ''
		ORDER BY e.id ASC`,
	)
}

// GetEvent returns an event by ID, or nil if it does not exist.
func (db *DB) GetEvent(id int64) (*Event, error) {
	row := db.conn.QueryRow("SELECT "+eventColumns+" FROM events e WHERE e.id = ?", id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// SetEventConfidence overrides the verification tier of an event.
func (db *DB) SetEventConfidence(id int64, confidence string) error {
	res, err := db.conn.Exec(
		"UPDATE events SET confidence = ?, updated_at = datetime('now') WHERE id = ?",
		confidence, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, "event", id)
}

// SetSourceStatus records the outcome of checking an event's citation.
func (db *DB) SetSourceStatus(id int64, status string) error {
	_, err := db.conn.Exec(
		"UPDATE events SET source_status = ?, source_checked_at = datetime('now') WHERE id = ?",
		status, id,
	)
	return err
}

func (db *DB) queryEventsWithService(query string, args ...any) ([]EventWithService, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventWithService
	for rows.Next() {
		var ews EventWithService
		var agreed *string
		e := &ews.Event
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Title, &e.Description, &e.EventDate, &e.Severity,
			&e.EventType, &e.SourceURL, &e.Confidence, &agreed, &e.ConsensusScore, &e.SourceStatus,
			&e.CreatedAt, &ews.ServiceName, &ews.ServiceSlug); err != nil {
			return nil, err
		}
		e.AgreedBy = decodeAgreedBy(agreed)
		events = append(events, ews)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var e Event
	var agreed *string
	if err := row.Scan(&e.ID, &e.ServiceID, &e.Title, &e.Description, &e.EventDate, &e.Severity,
		&e.EventType, &e.SourceURL, &e.Confidence, &agreed, &e.ConsensusScore, &e.SourceStatus,
		&e.CreatedAt); err != nil {
		return nil, err
	}
	e.AgreedBy = decodeAgreedBy(agreed)
	return &e, nil
}

func decodeAgreedBy(raw *string) []string {
	if raw == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return nil
	}
	return out
}

func expectOneRow(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}
