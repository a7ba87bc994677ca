package store

import (
	"fmt"
	"strings"
	"time"
)

// SearchMessagesParams filters a message search.
type SearchMessagesParams struct {
	Query   string
	ChatJID string
	From    string
	Type    string
	Before  *time.Time
	After   *time.Time
	Limit   int
}

// SearchMessages searches message text, captions, filenames, chat names,
// and sender names. With FTS5 available results rank by BM25; otherwise a
// LIKE scan orders by timestamp. Ties break on (ts DESC, msg_id ASC).
func (s *DB) SearchMessages(p SearchMessagesParams) ([]Message, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidArgument)
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if s.ftsEnabled {
		return s.searchFTS(p)
	}
	return s.searchLIKE(p)
}

func (s *DB) searchFTS(p SearchMessagesParams) ([]Message, error) {
	q := `
		SELECT ` + messageColumns + `,
		       snippet(messages_fts, 0, '[', ']', '…', 12)
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE messages_fts MATCH ?`
	args := []any{p.Query}
	q, args = appendSearchFilters(q, args, p)
	q += ` ORDER BY bm25(messages_fts), m.ts DESC, m.msg_id ASC LIMIT ?`
	args = append(args, p.Limit)
	return s.scanSearchResults(q, args...)
}

func (s *DB) searchLIKE(p SearchMessagesParams) ([]Message, error) {
	q := `
		SELECT ` + messageColumns + `, ''
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE (LOWER(COALESCE(m.text,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(m.display_text,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(m.media_caption,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(m.filename,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(m.chat_name,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(m.sender_name,'')) LIKE LOWER(?)
		    OR LOWER(COALESCE(c.name,'')) LIKE LOWER(?))`
	needle := "%" + p.Query + "%"
	args := []any{needle, needle, needle, needle, needle, needle, needle}
	q, args = appendSearchFilters(q, args, p)
	q += ` ORDER BY m.ts DESC, m.msg_id ASC LIMIT ?`
	args = append(args, p.Limit)
	return s.scanSearchResults(q, args...)
}

func appendSearchFilters(q string, args []any, p SearchMessagesParams) (string, []any) {
	if strings.TrimSpace(p.ChatJID) != "" {
		q += ` AND m.chat_jid = ?`
		args = append(args, p.ChatJID)
	}
	if strings.TrimSpace(p.From) != "" {
		q += ` AND m.sender_jid = ?`
		args = append(args, p.From)
	}
	if strings.TrimSpace(p.Type) != "" {
		q += ` AND COALESCE(m.media_type,'') = ?`
		args = append(args, p.Type)
	}
	if p.After != nil {
		q += ` AND m.ts > ?`
		args = append(args, unix(*p.After))
	}
	if p.Before != nil {
		q += ` AND m.ts < ?`
		args = append(args, unix(*p.Before))
	}
	return q, args
}

func (s *DB) scanSearchResults(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0)
	for rows.Next() {
		var m Message
		var ts int64
		var fromMe int
		if err := rows.Scan(
			&m.ChatJID, &m.ChatName, &m.MsgID, &m.SenderJID, &m.SenderName,
			&ts, &fromMe, &m.Text, &m.DisplayText, &m.MediaType, &m.Snippet,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		m.Timestamp = fromUnix(ts)
		m.FromMe = fromMe != 0
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return msgs, nil
}
