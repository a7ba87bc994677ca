package store

import (
	"fmt"
	"strings"
	"time"
)

// UpsertGroup inserts or widens a group's metadata.
func (s *DB) UpsertGroup(jid, name, ownerJID string, created time.Time) error {
	if strings.TrimSpace(jid) == "" {
		return fmt.Errorf("%w: group jid is required", ErrInvalidArgument)
	}
	now := time.Now().UTC().Unix()
	_, err := s.db.Exec(`
		INSERT INTO groups (jid, name, owner_jid, created_ts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name       = CASE WHEN excluded.name != '' THEN excluded.name ELSE groups.name END,
			owner_jid  = CASE WHEN excluded.owner_jid != '' THEN excluded.owner_jid ELSE groups.owner_jid END,
			created_ts = CASE WHEN excluded.created_ts > 0 THEN excluded.created_ts ELSE groups.created_ts END,
			updated_at = excluded.updated_at
	`, jid, name, ownerJID, unix(created), now)
	if err != nil {
		return fmt.Errorf("upsert group %s: %w", jid, err)
	}
	return nil
}

// ListGroups returns groups, optionally filtered by a case-insensitive
// substring on name or JID.
func (s *DB) ListGroups(query string, limit int) ([]Group, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT jid, name, owner_jid, created_ts, updated_at FROM groups WHERE 1=1`
	var args []any
	if strings.TrimSpace(query) != "" {
		needle := "%" + query + "%"
		q += ` AND (LOWER(name) LIKE LOWER(?) OR LOWER(jid) LIKE LOWER(?))`
		args = append(args, needle, needle)
	}
	q += ` ORDER BY created_ts DESC, jid ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := make([]Group, 0)
	for rows.Next() {
		var g Group
		var created, updated int64
		if err := rows.Scan(&g.JID, &g.Name, &g.OwnerJID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.CreatedAt = fromUnix(created)
		g.UpdatedAt = fromUnix(updated)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// GetGroup returns one group by JID.
func (s *DB) GetGroup(jid string) (Group, error) {
	var g Group
	var created, updated int64
	err := s.db.QueryRow(`
		SELECT jid, name, owner_jid, created_ts, updated_at FROM groups WHERE jid = ?
	`, jid).Scan(&g.JID, &g.Name, &g.OwnerJID, &created, &updated)
	if err != nil {
		return Group{}, notFound(err, "group", jid)
	}
	g.CreatedAt = fromUnix(created)
	g.UpdatedAt = fromUnix(updated)
	return g, nil
}

// ReplaceGroupParticipants swaps the full participant set of a group in one
// transaction. Server snapshots are canonical, so the prior set is deleted
// and the new one inserted; any failure rolls back to the old snapshot.
func (s *DB) ReplaceGroupParticipants(groupJID string, participants []GroupParticipant) error {
	if strings.TrimSpace(groupJID) == "" {
		return fmt.Errorf("%w: group jid is required", ErrInvalidArgument)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_participants WHERE group_jid = ?`, groupJID); err != nil {
		return fmt.Errorf("clear participants for %s: %w", groupJID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO group_participants (group_jid, user_jid, role, updated_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare participant insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, p := range participants {
		role := strings.TrimSpace(p.Role)
		if role == "" {
			role = RoleMember
		}
		if _, err := stmt.Exec(groupJID, p.UserJID, role, now); err != nil {
			return fmt.Errorf("insert participant %s: %w", p.UserJID, err)
		}
	}

	return tx.Commit()
}

// ListGroupParticipants returns the current participant snapshot of a group.
func (s *DB) ListGroupParticipants(groupJID string) ([]GroupParticipant, error) {
	rows, err := s.db.Query(`
		SELECT group_jid, user_jid, role, updated_at
		FROM group_participants
		WHERE group_jid = ?
		ORDER BY user_jid
	`, groupJID)
	if err != nil {
		return nil, fmt.Errorf("query participants for %s: %w", groupJID, err)
	}
	defer rows.Close()

	parts := make([]GroupParticipant, 0)
	for rows.Next() {
		var p GroupParticipant
		var updated int64
		if err := rows.Scan(&p.GroupJID, &p.UserJID, &p.Role, &updated); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.UpdatedAt = fromUnix(updated)
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
