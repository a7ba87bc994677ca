package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertMessage performs a widening upsert keyed on (chat_jid, msg_id).
// The protocol delivers the same message in several shapes (live event,
// history sync, on-demand backfill), so empty incoming values never clobber
// stored ones: a non-empty incoming string or blob replaces the stored
// value, an empty one keeps it, and the timestamp takes the max. from_me
// takes the incoming value. local_path/downloaded_at belong to the media
// worker and are never touched here.
func (s *DB) UpsertMessage(p UpsertMessageParams) error {
	if strings.TrimSpace(p.ChatJID) == "" || strings.TrimSpace(p.MsgID) == "" {
		return fmt.Errorf("%w: chat jid and message id are required", ErrInvalidArgument)
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (
			chat_jid, chat_name, msg_id, sender_jid, sender_name, ts, from_me,
			text, display_text, media_type, media_caption, filename, mime_type,
			direct_path, media_key, file_sha256, file_enc_sha256, file_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			chat_name       = COALESCE(NULLIF(excluded.chat_name,''), messages.chat_name),
			sender_jid      = COALESCE(NULLIF(excluded.sender_jid,''), messages.sender_jid),
			sender_name     = COALESCE(NULLIF(excluded.sender_name,''), messages.sender_name),
			ts              = CASE WHEN excluded.ts > messages.ts THEN excluded.ts ELSE messages.ts END,
			from_me         = excluded.from_me,
			text            = COALESCE(NULLIF(excluded.text,''), messages.text),
			display_text    = COALESCE(NULLIF(excluded.display_text,''), messages.display_text),
			media_type      = COALESCE(NULLIF(excluded.media_type,''), messages.media_type),
			media_caption   = COALESCE(NULLIF(excluded.media_caption,''), messages.media_caption),
			filename        = COALESCE(NULLIF(excluded.filename,''), messages.filename),
			mime_type       = COALESCE(NULLIF(excluded.mime_type,''), messages.mime_type),
			direct_path     = COALESCE(NULLIF(excluded.direct_path,''), messages.direct_path),
			media_key       = CASE WHEN length(COALESCE(excluded.media_key, x'')) > 0 THEN excluded.media_key ELSE messages.media_key END,
			file_sha256     = CASE WHEN length(COALESCE(excluded.file_sha256, x'')) > 0 THEN excluded.file_sha256 ELSE messages.file_sha256 END,
			file_enc_sha256 = CASE WHEN length(COALESCE(excluded.file_enc_sha256, x'')) > 0 THEN excluded.file_enc_sha256 ELSE messages.file_enc_sha256 END,
			file_length     = CASE WHEN excluded.file_length > 0 THEN excluded.file_length ELSE messages.file_length END
	`,
		p.ChatJID, nullIfEmpty(p.ChatName), p.MsgID, nullIfEmpty(p.SenderJID), nullIfEmpty(p.SenderName),
		unix(p.Timestamp), boolToInt(p.FromMe),
		nullIfEmpty(p.Text), nullIfEmpty(p.DisplayText), nullIfEmpty(p.MediaType), nullIfEmpty(p.MediaCaption),
		nullIfEmpty(p.Filename), nullIfEmpty(p.MimeType), nullIfEmpty(p.DirectPath),
		p.MediaKey, p.FileSHA256, p.FileEncSHA256, int64(p.FileLength),
	)
	if err != nil {
		return fmt.Errorf("upsert message %s/%s: %w", p.ChatJID, p.MsgID, err)
	}
	return nil
}

// ListMessagesParams filters the messages list query.
type ListMessagesParams struct {
	ChatJID string
	Before  *time.Time
	After   *time.Time
	Limit   int
}

const messageColumns = `
	m.chat_jid, COALESCE(c.name,''), m.msg_id, COALESCE(m.sender_jid,''), COALESCE(m.sender_name,''),
	m.ts, m.from_me, COALESCE(m.text,''), COALESCE(m.display_text,''), COALESCE(m.media_type,'')`

// ListMessages returns messages newest first.
func (s *DB) ListMessages(p ListMessagesParams) ([]Message, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	q := `
		SELECT ` + messageColumns + `
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE 1=1`
	var args []any
	if strings.TrimSpace(p.ChatJID) != "" {
		q += ` AND m.chat_jid = ?`
		args = append(args, p.ChatJID)
	}
	if p.After != nil {
		q += ` AND m.ts > ?`
		args = append(args, unix(*p.After))
	}
	if p.Before != nil {
		q += ` AND m.ts < ?`
		args = append(args, unix(*p.Before))
	}
	q += ` ORDER BY m.ts DESC, m.msg_id ASC LIMIT ?`
	args = append(args, p.Limit)

	return s.scanMessages(q, args...)
}

// GetMessage returns one message by (chat, id).
func (s *DB) GetMessage(chatJID, msgID string) (Message, error) {
	var m Message
	var ts int64
	var fromMe int
	err := s.db.QueryRow(`
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE m.chat_jid = ? AND m.msg_id = ?
	`, chatJID, msgID).Scan(
		&m.ChatJID, &m.ChatName, &m.MsgID, &m.SenderJID, &m.SenderName,
		&ts, &fromMe, &m.Text, &m.DisplayText, &m.MediaType,
	)
	if err != nil {
		return Message{}, notFound(err, "message", chatJID+"/"+msgID)
	}
	m.Timestamp = fromUnix(ts)
	m.FromMe = fromMe != 0
	return m, nil
}

// MessageContext returns up to `before` older and `after` newer messages
// around the target, in chronological order with the target included.
func (s *DB) MessageContext(chatJID, msgID string, before, after int) ([]Message, error) {
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	target, err := s.GetMessage(chatJID, msgID)
	if err != nil {
		return nil, err
	}
	ts := unix(target.Timestamp)

	prev, err := s.scanMessages(`
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE m.chat_jid = ? AND m.ts < ?
		ORDER BY m.ts DESC, m.msg_id ASC
		LIMIT ?
	`, chatJID, ts, before)
	if err != nil {
		return nil, err
	}
	next, err := s.scanMessages(`
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE m.chat_jid = ? AND m.ts > ?
		ORDER BY m.ts ASC, m.msg_id ASC
		LIMIT ?
	`, chatJID, ts, after)
	if err != nil {
		return nil, err
	}

	// prev came newest-first; flip to chronological.
	for i, j := 0, len(prev)-1; i < j; i, j = i+1, j-1 {
		prev[i], prev[j] = prev[j], prev[i]
	}

	out := make([]Message, 0, len(prev)+1+len(next))
	out = append(out, prev...)
	out = append(out, target)
	out = append(out, next...)
	return out, nil
}

// GetOldestMessageInfo returns the oldest message of a chat, used as the
// backfill cursor.
func (s *DB) GetOldestMessageInfo(chatJID string) (MessageInfo, error) {
	if strings.TrimSpace(chatJID) == "" {
		return MessageInfo{}, fmt.Errorf("%w: chat jid is required", ErrInvalidArgument)
	}
	var info MessageInfo
	var ts int64
	var fromMe int
	err := s.db.QueryRow(`
		SELECT chat_jid, msg_id, ts, from_me, COALESCE(sender_jid,''), COALESCE(sender_name,'')
		FROM messages
		WHERE chat_jid = ?
		ORDER BY ts ASC, msg_id ASC
		LIMIT 1
	`, chatJID).Scan(&info.ChatJID, &info.MsgID, &ts, &fromMe, &info.SenderJID, &info.SenderName)
	if err != nil {
		return MessageInfo{}, notFound(err, "messages in chat", chatJID)
	}
	info.Timestamp = fromUnix(ts)
	info.FromMe = fromMe != 0
	return info, nil
}

// CountChatMessages returns the number of stored messages in one chat.
func (s *DB) CountChatMessages(chatJID string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_jid = ?`, chatJID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages for %s: %w", chatJID, err)
	}
	return n, nil
}

// CountMessages returns the total number of stored messages.
func (s *DB) CountMessages() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// GetMediaDownloadInfo returns the decryption tuple and download state for
// one message.
func (s *DB) GetMediaDownloadInfo(chatJID, msgID string) (MediaDownloadInfo, error) {
	var info MediaDownloadInfo
	var ts int64
	var fileLen sql.NullInt64
	var downloadedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT m.chat_jid, COALESCE(c.name,''), m.msg_id, m.ts,
		       COALESCE(m.media_type,''), COALESCE(m.filename,''), COALESCE(m.mime_type,''),
		       COALESCE(m.direct_path,''), m.media_key, m.file_sha256, m.file_enc_sha256,
		       m.file_length, COALESCE(m.local_path,''), m.downloaded_at
		FROM messages m
		LEFT JOIN chats c ON c.jid = m.chat_jid
		WHERE m.chat_jid = ? AND m.msg_id = ?
	`, chatJID, msgID).Scan(
		&info.ChatJID, &info.ChatName, &info.MsgID, &ts,
		&info.MediaType, &info.Filename, &info.MimeType,
		&info.DirectPath, &info.MediaKey, &info.FileSHA256, &info.FileEncSHA256,
		&fileLen, &info.LocalPath, &downloadedAt,
	)
	if err != nil {
		return MediaDownloadInfo{}, notFound(err, "message", chatJID+"/"+msgID)
	}
	info.Timestamp = fromUnix(ts)
	if fileLen.Valid && fileLen.Int64 > 0 {
		info.FileLength = uint64(fileLen.Int64)
	}
	if downloadedAt.Valid {
		info.DownloadedAt = fromUnix(downloadedAt.Int64)
	}
	return info, nil
}

// MarkMediaDownloaded records where the media worker materialized a file.
func (s *DB) MarkMediaDownloaded(chatJID, msgID, localPath string, downloadedAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE messages SET local_path = ?, downloaded_at = ?
		WHERE chat_jid = ? AND msg_id = ?
	`, localPath, unix(downloadedAt), chatJID, msgID)
	if err != nil {
		return fmt.Errorf("mark media downloaded %s/%s: %w", chatJID, msgID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("message %q: %w", chatJID+"/"+msgID, ErrNotFound)
	}
	return nil
}

func (s *DB) scanMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0)
	for rows.Next() {
		var m Message
		var ts int64
		var fromMe int
		if err := rows.Scan(
			&m.ChatJID, &m.ChatName, &m.MsgID, &m.SenderJID, &m.SenderName,
			&ts, &fromMe, &m.Text, &m.DisplayText, &m.MediaType,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = fromUnix(ts)
		m.FromMe = fromMe != 0
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
