package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
)

const upsertMessageSQL = `
	INSERT INTO messages (profile_id, chat_id, msg_id, sender_id, body, quoted_id, from_me, is_read, is_edited,
		timestamp, file_json, reactions_json, raw, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, chat_id, msg_id) DO UPDATE SET
		sender_id = CASE WHEN excluded.sender_id != '' THEN excluded.sender_id ELSE messages.sender_id END,
		body = excluded.body,
		quoted_id = CASE WHEN excluded.quoted_id != '' THEN excluded.quoted_id ELSE messages.quoted_id END,
		is_read = MAX(messages.is_read, excluded.is_read),
		is_edited = MAX(messages.is_edited, excluded.is_edited),
		file_json = CASE WHEN excluded.file_json != '' THEN excluded.file_json ELSE messages.file_json END,
		reactions_json = CASE WHEN excluded.reactions_json != '' THEN excluded.reactions_json ELSE messages.reactions_json END,
		raw = COALESCE(excluded.raw, messages.raw)`

// UpsertMessage inserts or updates a message (idempotent on profile, chat and id).
func (db *DB) UpsertMessage(m *Message) error {
	return upsertMessage(db, m)
}

func upsertMessage(x execer, m *Message) error {
	fileJSON, reactionsJSON, err := encodeExtras(m)
	if err != nil {
		return err
	}
	_, err = x.Exec(upsertMessageSQL,
		m.ProfileID, m.ChatID, m.MsgID, m.SenderID, m.Body, m.QuotedID, m.FromMe, m.IsRead, m.IsEdited,
		m.Timestamp, fileJSON, reactionsJSON, m.Raw, time.Now().UnixMilli())
	return err
}

func encodeExtras(m *Message) (fileJSON, reactionsJSON string, err error) {
	if m.File != nil {
		b, err := json.Marshal(m.File)
		if err != nil {
			return "", "", fmt.Errorf("encode file info: %w", err)
		}
		fileJSON = string(b)
	}
	if !m.Reactions.Empty() || m.Reactions.Own != "" {
		b, err := json.Marshal(m.Reactions)
		if err != nil {
			return "", "", fmt.Errorf("encode reactions: %w", err)
		}
		reactionsJSON = string(b)
	}
	return fileJSON, reactionsJSON, nil
}

// IngestBatch upserts messages and touches their chats in one transaction.
func (db *DB) IngestBatch(msgs []*Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if err := touchChat(tx, m.ProfileID, m.ChatID, m.Timestamp, !m.FromMe && !m.IsRead); err != nil {
			return fmt.Errorf("touch chat in batch: %w", err)
		}
		if err := upsertMessage(tx, m); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
	}
	return tx.Commit()
}

const messageColumns = `profile_id, chat_id, msg_id, sender_id, body, quoted_id, from_me, is_read, is_edited,
	timestamp, file_json, reactions_json, raw`

func scanMessage(s interface{ Scan(...any) error }) (Message, error) {
	var (
		m                       Message
		fileJSON, reactionsJSON string
	)
	if err := s.Scan(&m.ProfileID, &m.ChatID, &m.MsgID, &m.SenderID, &m.Body, &m.QuotedID, &m.FromMe, &m.IsRead,
		&m.IsEdited, &m.Timestamp, &fileJSON, &reactionsJSON, &m.Raw); err != nil {
		return m, err
	}
	if fileJSON != "" {
		var f protocol.FileInfo
		if err := json.Unmarshal([]byte(fileJSON), &f); err != nil {
			return m, fmt.Errorf("decode file info of %s: %w", m.MsgID, err)
		}
		m.File = &f
	}
	if reactionsJSON != "" {
		if err := json.Unmarshal([]byte(reactionsJSON), &m.Reactions); err != nil {
			return m, fmt.Errorf("decode reactions of %s: %w", m.MsgID, err)
		}
	}
	return m, nil
}

// GetMessage returns one message, or nil when unknown.
func (db *DB) GetMessage(profileID, chatID, msgID string) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT `+messageColumns+` FROM messages
		WHERE profile_id = ? AND chat_id = ? AND msg_id = ?`, profileID, chatID, msgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns up to limit messages strictly older than beforeID,
// newest first, using keyset pagination on (timestamp, msg_id). An empty
// beforeID starts from the newest message. An unknown beforeID yields nothing.
func (db *DB) ListMessages(profileID, chatID, beforeID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if beforeID == "" {
		rows, err = db.Query(`SELECT `+messageColumns+` FROM messages
			WHERE profile_id = ? AND chat_id = ?
			ORDER BY timestamp DESC, msg_id DESC
			LIMIT ?`, profileID, chatID, limit)
	} else {
		rows, err = db.Query(`SELECT `+messageColumns+` FROM messages m
			WHERE m.profile_id = ? AND m.chat_id = ?
			AND EXISTS (SELECT 1 FROM messages b WHERE b.profile_id = m.profile_id AND b.chat_id = m.chat_id AND b.msg_id = ?
				AND (m.timestamp < b.timestamp OR (m.timestamp = b.timestamp AND m.msg_id < b.msg_id)))
			ORDER BY m.timestamp DESC, m.msg_id DESC
			LIMIT ?`, profileID, chatID, beforeID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SearchMessages returns messages of a profile whose body contains query,
// newest first.
func (db *DB) SearchMessages(profileID, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	rows, err := db.Query(`SELECT `+messageColumns+` FROM messages
		WHERE profile_id = ? AND body LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC LIMIT ?`, profileID, "%"+escaped+"%", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead sets the read flag on the given messages.
func (db *DB) MarkMessagesRead(profileID, chatID string, ids []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE messages SET is_read = 1 WHERE profile_id = ? AND chat_id = ? AND msg_id = ?`,
			profileID, chatID, id); err != nil {
			return fmt.Errorf("mark %s read: %w", id, err)
		}
	}
	return tx.Commit()
}

// UpdateMessageFile replaces the attachment descriptor of a message.
func (db *DB) UpdateMessageFile(profileID, chatID, msgID string, f protocol.FileInfo) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode file info: %w", err)
	}
	_, err = db.Exec(`UPDATE messages SET file_json = ? WHERE profile_id = ? AND chat_id = ? AND msg_id = ?`,
		string(b), profileID, chatID, msgID)
	return err
}

// DeleteMessage removes one message.
func (db *DB) DeleteMessage(profileID, chatID, msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE profile_id = ? AND chat_id = ? AND msg_id = ?`, profileID, chatID, msgID)
	return err
}
