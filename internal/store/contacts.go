package store

import (
	"fmt"
	"strings"
	"time"
)

// displayNameExpr picks the first non-empty of alias, full name, push name,
// business name, first name for the contact's displayed name.
const displayNameExpr = `COALESCE(
	NULLIF(a.alias,''),
	NULLIF(c.full_name,''),
	NULLIF(c.push_name,''),
	NULLIF(c.business_name,''),
	NULLIF(c.first_name,''),
	'')`

// UpsertContact inserts a contact or widens its name fields. Empty incoming
// values never overwrite what a richer sync already stored.
func (s *DB) UpsertContact(jid, phone, pushName, fullName, firstName, businessName string) error {
	if strings.TrimSpace(jid) == "" {
		return fmt.Errorf("%w: contact jid is required", ErrInvalidArgument)
	}
	now := time.Now().UTC().Unix()
	_, err := s.db.Exec(`
		INSERT INTO contacts (jid, phone, push_name, full_name, first_name, business_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			phone         = CASE WHEN excluded.phone         != '' THEN excluded.phone         ELSE contacts.phone         END,
			push_name     = CASE WHEN excluded.push_name     != '' THEN excluded.push_name     ELSE contacts.push_name     END,
			full_name     = CASE WHEN excluded.full_name     != '' THEN excluded.full_name     ELSE contacts.full_name     END,
			first_name    = CASE WHEN excluded.first_name    != '' THEN excluded.first_name    ELSE contacts.first_name    END,
			business_name = CASE WHEN excluded.business_name != '' THEN excluded.business_name ELSE contacts.business_name END,
			updated_at    = excluded.updated_at
	`, jid, phone, pushName, fullName, firstName, businessName, now)
	if err != nil {
		return fmt.Errorf("upsert contact %s: %w", jid, err)
	}
	return nil
}

// SearchContacts matches the query against alias, every name field, phone,
// and JID (case-insensitive substring). Empty query is an error.
func (s *DB) SearchContacts(query string, limit int) ([]Contact, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 50
	}
	needle := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT c.jid, c.phone, COALESCE(a.alias,''), `+displayNameExpr+`, c.updated_at
		FROM contacts c
		LEFT JOIN contact_aliases a ON a.jid = c.jid
		WHERE LOWER(COALESCE(a.alias,'')) LIKE LOWER(?)
		   OR LOWER(c.full_name) LIKE LOWER(?)
		   OR LOWER(c.push_name) LIKE LOWER(?)
		   OR LOWER(c.business_name) LIKE LOWER(?)
		   OR LOWER(c.first_name) LIKE LOWER(?)
		   OR LOWER(c.phone) LIKE LOWER(?)
		   OR LOWER(c.jid) LIKE LOWER(?)
		ORDER BY `+displayNameExpr+` COLLATE NOCASE ASC, c.jid ASC
		LIMIT ?
	`, needle, needle, needle, needle, needle, needle, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var c Contact
		var updated int64
		if err := rows.Scan(&c.JID, &c.Phone, &c.Alias, &c.Name, &updated); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.UpdatedAt = fromUnix(updated)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// GetContact returns one contact with its alias and tag set.
func (s *DB) GetContact(jid string) (Contact, error) {
	var c Contact
	var updated int64
	err := s.db.QueryRow(`
		SELECT c.jid, c.phone, COALESCE(a.alias,''), `+displayNameExpr+`, c.updated_at
		FROM contacts c
		LEFT JOIN contact_aliases a ON a.jid = c.jid
		WHERE c.jid = ?
	`, jid).Scan(&c.JID, &c.Phone, &c.Alias, &c.Name, &updated)
	if err != nil {
		return Contact{}, notFound(err, "contact", jid)
	}
	c.UpdatedAt = fromUnix(updated)

	tags, err := s.ListTags(jid)
	if err != nil {
		return Contact{}, err
	}
	c.Tags = tags
	return c, nil
}

// SetAlias stores the local alias for a contact, replacing any prior one.
func (s *DB) SetAlias(jid, alias string) error {
	if strings.TrimSpace(jid) == "" || strings.TrimSpace(alias) == "" {
		return fmt.Errorf("%w: jid and alias are required", ErrInvalidArgument)
	}
	_, err := s.db.Exec(`
		INSERT INTO contact_aliases (jid, alias, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET alias = excluded.alias, updated_at = excluded.updated_at
	`, jid, alias, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("set alias for %s: %w", jid, err)
	}
	return nil
}

// RemoveAlias deletes the local alias for a contact.
func (s *DB) RemoveAlias(jid string) error {
	if _, err := s.db.Exec(`DELETE FROM contact_aliases WHERE jid = ?`, jid); err != nil {
		return fmt.Errorf("remove alias for %s: %w", jid, err)
	}
	return nil
}

// AddTag adds a tag to a contact's tag set.
func (s *DB) AddTag(jid, tag string) error {
	if strings.TrimSpace(jid) == "" || strings.TrimSpace(tag) == "" {
		return fmt.Errorf("%w: jid and tag are required", ErrInvalidArgument)
	}
	_, err := s.db.Exec(`
		INSERT INTO contact_tags (jid, tag, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(jid, tag) DO UPDATE SET updated_at = excluded.updated_at
	`, jid, tag, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("add tag for %s: %w", jid, err)
	}
	return nil
}

// RemoveTag removes one tag from a contact's tag set.
func (s *DB) RemoveTag(jid, tag string) error {
	if _, err := s.db.Exec(`DELETE FROM contact_tags WHERE jid = ? AND tag = ?`, jid, tag); err != nil {
		return fmt.Errorf("remove tag for %s: %w", jid, err)
	}
	return nil
}

// ListTags returns the sorted tag set for a contact.
func (s *DB) ListTags(jid string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM contact_tags WHERE jid = ? ORDER BY tag`, jid)
	if err != nil {
		return nil, fmt.Errorf("query tags for %s: %w", jid, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
