package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore opens a fresh database in a temp dir. FTS availability
// depends on the SQLite build; tests that need it check HasFTS.
func newTestStore(t *testing.T) *DB {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wacli.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Open(\"\"): got %v, want ErrInvalidArgument", err)
	}
}

// ---------------------------------------------------------------------------
// Chats
// ---------------------------------------------------------------------------

func TestUpsertChat_NameOnlyWidens(t *testing.T) {
	s := newTestStore(t)
	jid := "123@s.whatsapp.net"

	if err := s.UpsertChat(jid, ChatKindDM, "Alice", time.Unix(1000, 0)); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	// Empty name must not clobber.
	if err := s.UpsertChat(jid, ChatKindDM, "", time.Unix(1001, 0)); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	c, err := s.GetChat(jid)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if c.Name != "Alice" {
		t.Errorf("name = %q, want %q", c.Name, "Alice")
	}
	if c.LastMessageTS.Unix() != 1001 {
		t.Errorf("last_message_ts = %d, want 1001", c.LastMessageTS.Unix())
	}
}

func TestUpsertChat_LastTSMonotonic(t *testing.T) {
	s := newTestStore(t)
	jid := "123@s.whatsapp.net"

	// Out-of-order observations: the max must win.
	for _, ts := range []int64{1000, 1500, 1200, 900} {
		if err := s.UpsertChat(jid, ChatKindDM, "Alice", time.Unix(ts, 0)); err != nil {
			t.Fatalf("UpsertChat(ts=%d): %v", ts, err)
		}
	}

	c, err := s.GetChat(jid)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if c.LastMessageTS.Unix() != 1500 {
		t.Errorf("last_message_ts = %d, want max 1500", c.LastMessageTS.Unix())
	}
}

func TestUpsertChat_KindNeverDowngradesToUnknown(t *testing.T) {
	s := newTestStore(t)
	jid := "12345@g.us"

	s.UpsertChat(jid, ChatKindGroup, "G", time.Unix(1, 0))
	s.UpsertChat(jid, "", "", time.Unix(2, 0))

	c, _ := s.GetChat(jid)
	if c.Kind != ChatKindGroup {
		t.Errorf("kind = %q, want %q", c.Kind, ChatKindGroup)
	}
}

func TestListChats_OrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	s.UpsertChat("1@s.whatsapp.net", ChatKindDM, "Alice", time.Unix(100, 0))
	s.UpsertChat("2@s.whatsapp.net", ChatKindDM, "Bob", time.Unix(300, 0))
	s.UpsertChat("3@g.us", ChatKindGroup, "alpha team", time.Unix(200, 0))

	chats, err := s.ListChats("", 10)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("got %d chats, want 3", len(chats))
	}
	if chats[0].Name != "Bob" || chats[1].Name != "alpha team" || chats[2].Name != "Alice" {
		t.Errorf("wrong order: %v, %v, %v", chats[0].Name, chats[1].Name, chats[2].Name)
	}

	// Case-insensitive substring on name.
	chats, err = s.ListChats("ALPHA", 10)
	if err != nil {
		t.Fatalf("ListChats(query): %v", err)
	}
	if len(chats) != 1 || chats[0].JID != "3@g.us" {
		t.Errorf("query match = %+v, want alpha team only", chats)
	}

	// Substring on JID too.
	chats, _ = s.ListChats("2@s", 10)
	if len(chats) != 1 || chats[0].Name != "Bob" {
		t.Errorf("jid query match = %+v, want Bob", chats)
	}
}

func TestGetChat_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetChat("nope@s.whatsapp.net"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChat: got %v, want ErrNotFound", err)
	}
}
