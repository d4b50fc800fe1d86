package database

// InsertLead stores a lead. Returns the ID on success, 0 if the URL is
// already known.
func (db *DB) InsertLead(l Lead) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO leads (url, title, source, platform, published_date) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		l.URL, l.Title, l.Source, l.Platform, l.PublishedDate,
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// OpenLeads returns leads that have been neither researched nor dismissed,
// newest first.
func (db *DB) OpenLeads(limit int) ([]Lead, error) {
	rows, err := db.conn.Query(
		`SELECT id, url, title, source, platform, published_date, status, collected_at
		FROM leads WHERE status = ?
		ORDER BY COALESCE(published_date, collected_at) DESC, id DESC
		LIMIT ?`, LeadOpen, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.URL, &l.Title, &l.Source, &l.Platform, &l.PublishedDate,
			&l.Status, &l.CollectedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// SetLeadStatus moves a lead to status.
func (db *DB) SetLeadStatus(id int64, status string) error {
	res, err := db.conn.Exec("UPDATE leads SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "lead", id)
}

// MarkPlatformResearched closes every open lead for platform.
func (db *DB) MarkPlatformResearched(platform string) error {
	_, err := db.conn.Exec(
		"UPDATE leads SET status = ? WHERE status = ? AND lower(platform) = lower(?)",
		LeadResearched, LeadOpen, platform,
	)
	return err
}
