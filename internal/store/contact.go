package store

import (
	"fmt"
	"time"
)

const upsertContactSQL = `
	INSERT INTO contacts (profile_id, contact_id, name, phone, alias, is_starred, is_self, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, contact_id) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE contacts.phone END,
		alias = CASE WHEN excluded.alias != '' THEN excluded.alias ELSE contacts.alias END,
		is_starred = excluded.is_starred,
		is_self = excluded.is_self,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact. Empty fields keep stored values.
func (db *DB) UpsertContact(c *Contact) error {
	_, err := db.Exec(upsertContactSQL,
		c.ProfileID, c.ContactID, c.Name, c.Phone, c.Alias, c.IsStarred, c.IsSelf, time.Now().UnixMilli())
	return err
}

// BulkUpsertContacts upserts contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(upsertContactSQL,
			c.ProfileID, c.ContactID, c.Name, c.Phone, c.Alias, c.IsStarred, c.IsSelf, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.ContactID, err)
		}
	}
	return tx.Commit()
}

// ListContacts returns the contacts of a profile ordered by id.
func (db *DB) ListContacts(profileID string) ([]Contact, error) {
	rows, err := db.Query(`
		SELECT profile_id, contact_id, name, phone, alias, is_starred, is_self
		FROM contacts WHERE profile_id = ? ORDER BY contact_id`, profileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ProfileID, &c.ContactID, &c.Name, &c.Phone, &c.Alias, &c.IsStarred, &c.IsSelf); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
