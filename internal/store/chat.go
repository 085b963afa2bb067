package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const upsertChatSQL = `
	INSERT INTO chats (profile_id, chat_id, name, is_group, is_unread, is_muted, is_hidden, last_message_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, chat_id) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
		is_group = excluded.is_group,
		is_unread = excluded.is_unread,
		is_muted = excluded.is_muted,
		is_hidden = excluded.is_hidden,
		last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
		updated_at = excluded.updated_at`

// UpsertChat inserts or updates a chat. The stored last message time never
// moves backwards and an empty name keeps the stored one.
func (db *DB) UpsertChat(c *Chat) error {
	return upsertChat(db, c)
}

func upsertChat(x execer, c *Chat) error {
	_, err := x.Exec(upsertChatSQL,
		c.ProfileID, c.ChatID, c.Name, c.IsGroup, c.IsUnread, c.IsMuted, c.IsHidden, c.LastMessageAt, time.Now().UnixMilli())
	return err
}

// TouchChat records a message time for a chat without changing its flags,
// creating the chat if needed.
func (db *DB) TouchChat(profileID, chatID string, ts int64, unread bool) error {
	return touchChat(db, profileID, chatID, ts, unread)
}

func touchChat(x execer, profileID, chatID string, ts int64, unread bool) error {
	_, err := x.Exec(`
		INSERT INTO chats (profile_id, chat_id, is_unread, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(profile_id, chat_id) DO UPDATE SET
			is_unread = MAX(chats.is_unread, excluded.is_unread),
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		profileID, chatID, unread, ts, time.Now().UnixMilli())
	return err
}

const chatColumns = `profile_id, chat_id, name, is_group, is_unread, is_muted, is_hidden, last_message_at`

func scanChat(s interface{ Scan(...any) error }) (Chat, error) {
	var c Chat
	err := s.Scan(&c.ProfileID, &c.ChatID, &c.Name, &c.IsGroup, &c.IsUnread, &c.IsMuted, &c.IsHidden, &c.LastMessageAt)
	return c, err
}

// ListChats returns the chats of a profile, newest activity first.
func (db *DB) ListChats(profileID string) ([]Chat, error) {
	rows, err := db.Query(`
		SELECT `+chatColumns+`
		FROM chats
		WHERE profile_id = ?
		ORDER BY last_message_at DESC, chat_id ASC`, profileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns one chat, or nil when unknown.
func (db *DB) GetChat(profileID, chatID string) (*Chat, error) {
	c, err := scanChat(db.QueryRow(`SELECT `+chatColumns+` FROM chats WHERE profile_id = ? AND chat_id = ?`, profileID, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetChatMuted updates the muted flag.
func (db *DB) SetChatMuted(profileID, chatID string, muted bool) error {
	_, err := db.Exec(`UPDATE chats SET is_muted = ?, updated_at = ? WHERE profile_id = ? AND chat_id = ?`,
		muted, time.Now().UnixMilli(), profileID, chatID)
	return err
}

// SetChatUnread updates the unread flag.
func (db *DB) SetChatUnread(profileID, chatID string, unread bool) error {
	_, err := db.Exec(`UPDATE chats SET is_unread = ?, updated_at = ? WHERE profile_id = ? AND chat_id = ?`,
		unread, time.Now().UnixMilli(), profileID, chatID)
	return err
}

// DeleteChat removes a chat and all of its messages.
func (db *DB) DeleteChat(profileID, chatID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE profile_id = ? AND chat_id = ?`, profileID, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chats WHERE profile_id = ? AND chat_id = ?`, profileID, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return tx.Commit()
}
