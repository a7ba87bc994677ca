package store

import (
	"fmt"
	"strings"
	"time"
)

// UpsertChat inserts or widens a chat row. Name is overwritten only by a
// non-empty value; last_message_ts only ever advances.
func (s *DB) UpsertChat(jid, kind, name string, lastTS time.Time) error {
	if strings.TrimSpace(jid) == "" {
		return fmt.Errorf("%w: chat jid is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(kind) == "" {
		kind = ChatKindUnknown
	}
	_, err := s.db.Exec(`
		INSERT INTO chats (jid, kind, name, last_message_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			kind            = CASE WHEN excluded.kind != 'unknown' THEN excluded.kind ELSE chats.kind END,
			name            = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			last_message_ts = CASE WHEN excluded.last_message_ts > chats.last_message_ts THEN excluded.last_message_ts ELSE chats.last_message_ts END
	`, jid, kind, name, unix(lastTS))
	if err != nil {
		return fmt.Errorf("upsert chat %s: %w", jid, err)
	}
	return nil
}

// ListChats returns chats ordered by last message time descending,
// optionally filtered by a case-insensitive substring on name or JID.
func (s *DB) ListChats(query string, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT jid, kind, name, last_message_ts FROM chats WHERE 1=1`
	var args []any
	if strings.TrimSpace(query) != "" {
		needle := "%" + query + "%"
		q += ` AND (LOWER(name) LIKE LOWER(?) OR LOWER(jid) LIKE LOWER(?))`
		args = append(args, needle, needle)
	}
	q += ` ORDER BY last_message_ts DESC, jid ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		var ts int64
		if err := rows.Scan(&c.JID, &c.Kind, &c.Name, &ts); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.LastMessageTS = fromUnix(ts)
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// GetChat returns one chat by JID.
func (s *DB) GetChat(jid string) (Chat, error) {
	var c Chat
	var ts int64
	err := s.db.QueryRow(`
		SELECT jid, kind, name, last_message_ts FROM chats WHERE jid = ?
	`, jid).Scan(&c.JID, &c.Kind, &c.Name, &ts)
	if err != nil {
		return Chat{}, notFound(err, "chat", jid)
	}
	c.LastMessageTS = fromUnix(ts)
	return c, nil
}
