package store

import "time"

// QueueOutbox adds a message to the send outbox.
func (db *DB) QueueOutbox(e *OutboxEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (profile_id, client_msg_id, chat_id, body, quoted_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.ProfileID, e.ClientMsgID, e.ChatID, e.Body, e.QuotedID, now, now)
	return err
}

// MarkOutboxSending moves an entry to 'sending'.
func (db *DB) MarkOutboxSending(clientMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`,
		time.Now().UnixMilli(), clientMsgID)
	return err
}

// MarkOutboxSent moves an entry to 'sent' with the server message id.
func (db *DB) MarkOutboxSent(clientMsgID, serverMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE client_msg_id = ?`,
		serverMsgID, time.Now().UnixMilli(), clientMsgID)
	return err
}

// MarkOutboxFailed moves an entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`,
		errMsg, time.Now().UnixMilli(), clientMsgID)
	return err
}

// ResetStaleSending requeues entries left in 'sending' by a previous run.
func (db *DB) ResetStaleSending(profileID string) (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = 'queued', updated_at = ? WHERE profile_id = ? AND status = 'sending'`,
		time.Now().UnixMilli(), profileID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingOutbox returns queued entries of a profile, oldest first.
func (db *DB) PendingOutbox(profileID string) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, profile_id, client_msg_id, chat_id, body, quoted_id, status, error_message, server_msg_id
		FROM outbox WHERE profile_id = ? AND status = 'queued' ORDER BY created_at ASC, id ASC`, profileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.ClientMsgID, &e.ChatID, &e.Body, &e.QuotedID, &e.Status,
			&e.ErrorMessage, &e.ServerMsgID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetOutbox returns the entry for clientMsgID, or nil.
func (db *DB) GetOutbox(clientMsgID string) (*OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, profile_id, client_msg_id, chat_id, body, quoted_id, status, error_message, server_msg_id
		FROM outbox WHERE client_msg_id = ?`, clientMsgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var e OutboxEntry
	if err := rows.Scan(&e.ID, &e.ProfileID, &e.ClientMsgID, &e.ChatID, &e.Body, &e.QuotedID, &e.Status,
		&e.ErrorMessage, &e.ServerMsgID); err != nil {
		return nil, err
	}
	return &e, nil
}
