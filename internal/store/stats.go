package store

// Stats counts cached rows per profile, ordered by profile id.
func (db *DB) Stats() ([]ProfileStats, error) {
	rows, err := db.Query(`
		SELECT p.profile_id,
			(SELECT COUNT(*) FROM chats c WHERE c.profile_id = p.profile_id),
			(SELECT COUNT(*) FROM contacts ct WHERE ct.profile_id = p.profile_id),
			(SELECT COUNT(*) FROM messages m WHERE m.profile_id = p.profile_id),
			(SELECT COUNT(*) FROM outbox o WHERE o.profile_id = p.profile_id AND o.status IN ('queued', 'sending'))
		FROM (
			SELECT profile_id FROM chats
			UNION SELECT profile_id FROM contacts
			UNION SELECT profile_id FROM messages
		) p
		ORDER BY p.profile_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ProfileStats
	for rows.Next() {
		var s ProfileStats
		if err := rows.Scan(&s.ProfileID, &s.Chats, &s.Contacts, &s.Messages, &s.Pending); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
