package store

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func textMsg(chat, id string, ts int64, text string) UpsertMessageParams {
	return UpsertMessageParams{
		ChatJID:    chat,
		MsgID:      id,
		SenderJID:  chat,
		SenderName: "Alice",
		Timestamp:  time.Unix(ts, 0),
		Text:       text,
	}
}

func TestUpsertMessage_WideningIsOrderIndependent(t *testing.T) {
	// The same message arrives in three shapes: a bare live event, a
	// history-sync copy with the sender name, and a media-bearing copy.
	// Whatever the delivery order, the final row must be the widening join.
	chat := "123@s.whatsapp.net"
	shapes := []UpsertMessageParams{
		{ChatJID: chat, MsgID: "m1", Timestamp: time.Unix(1000, 0), Text: "hi"},
		{ChatJID: chat, MsgID: "m1", SenderJID: chat, SenderName: "Alice", Timestamp: time.Unix(1000, 0)},
		{ChatJID: chat, MsgID: "m1", Timestamp: time.Unix(1000, 0), MediaType: "image",
			MediaCaption: "cap", Filename: "pic.jpg", MimeType: "image/jpeg",
			DirectPath: "/d", MediaKey: []byte{1}, FileSHA256: []byte{2}, FileEncSHA256: []byte{3}, FileLength: 42},
	}

	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var want *MediaDownloadInfo
	var wantMsg *Message
	for _, perm := range perms {
		s := newTestStore(t)
		for _, i := range perm {
			if err := s.UpsertMessage(shapes[i]); err != nil {
				t.Fatalf("perm %v shape %d: %v", perm, i, err)
			}
			// Re-applying the same shape must be idempotent.
			if err := s.UpsertMessage(shapes[i]); err != nil {
				t.Fatalf("perm %v shape %d (repeat): %v", perm, i, err)
			}
		}

		info, err := s.GetMediaDownloadInfo(chat, "m1")
		if err != nil {
			t.Fatalf("perm %v: GetMediaDownloadInfo: %v", perm, err)
		}
		msg, err := s.GetMessage(chat, "m1")
		if err != nil {
			t.Fatalf("perm %v: GetMessage: %v", perm, err)
		}

		if want == nil {
			want, wantMsg = &info, &msg
			continue
		}
		if !reflect.DeepEqual(info, *want) {
			t.Errorf("perm %v: media info diverged:\n got %+v\nwant %+v", perm, info, *want)
		}
		if !reflect.DeepEqual(msg, *wantMsg) {
			t.Errorf("perm %v: message diverged:\n got %+v\nwant %+v", perm, msg, *wantMsg)
		}
	}

	if want.MediaType != "image" || want.DirectPath != "/d" || len(want.MediaKey) == 0 {
		t.Errorf("widening join lost media fields: %+v", *want)
	}
	if wantMsg.Text != "hi" || wantMsg.SenderName != "Alice" {
		t.Errorf("widening join lost text/sender: %+v", *wantMsg)
	}
}

func TestUpsertMessage_TimestampAdvancesOnly(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"

	s.UpsertMessage(textMsg(chat, "m1", 1000, "a"))
	s.UpsertMessage(textMsg(chat, "m1", 900, "a")) // stale copy
	m, _ := s.GetMessage(chat, "m1")
	if m.Timestamp.Unix() != 1000 {
		t.Errorf("ts = %d, want 1000 (no rewind)", m.Timestamp.Unix())
	}

	s.UpsertMessage(textMsg(chat, "m1", 1100, "a"))
	m, _ = s.GetMessage(chat, "m1")
	if m.Timestamp.Unix() != 1100 {
		t.Errorf("ts = %d, want 1100 (advance)", m.Timestamp.Unix())
	}
}

func TestUpsertMessage_EmptyNeverClobbers(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"

	s.UpsertMessage(textMsg(chat, "m1", 1000, "original"))
	s.UpsertMessage(UpsertMessageParams{ChatJID: chat, MsgID: "m1", Timestamp: time.Unix(1000, 0)})

	m, err := s.GetMessage(chat, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if m.Text != "original" {
		t.Errorf("text = %q, want %q", m.Text, "original")
	}
	if m.SenderName != "Alice" {
		t.Errorf("sender_name = %q, want %q", m.SenderName, "Alice")
	}
}

func TestUpsertMessage_MissingKeys(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertMessage(UpsertMessageParams{ChatJID: "", MsgID: "m1"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestListMessages_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"
	other := "456@s.whatsapp.net"

	s.UpsertMessage(textMsg(chat, "m1", 100, "first"))
	s.UpsertMessage(textMsg(chat, "m2", 200, "second"))
	s.UpsertMessage(textMsg(chat, "m3", 300, "third"))
	s.UpsertMessage(textMsg(other, "x1", 250, "elsewhere"))

	msgs, err := s.ListMessages(ListMessagesParams{ChatJID: chat, Limit: 10})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].MsgID != "m3" || msgs[2].MsgID != "m1" {
		t.Errorf("order = %s..%s, want m3..m1", msgs[0].MsgID, msgs[2].MsgID)
	}

	before := time.Unix(300, 0)
	after := time.Unix(100, 0)
	msgs, _ = s.ListMessages(ListMessagesParams{ChatJID: chat, Before: &before, After: &after, Limit: 10})
	if len(msgs) != 1 || msgs[0].MsgID != "m2" {
		t.Errorf("windowed list = %+v, want m2 only", msgs)
	}
}

func TestMessageContext(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		s.UpsertMessage(textMsg(chat, id, int64(100+i*10), "msg "+id))
	}

	ctx, err := s.MessageContext(chat, "c", 2, 1)
	if err != nil {
		t.Fatalf("MessageContext: %v", err)
	}
	got := make([]string, len(ctx))
	for i, m := range ctx {
		got[i] = m.MsgID
	}
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("context = %v, want %v", got, want)
	}
}

func TestMessageContext_TargetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.MessageContext("123@s.whatsapp.net", "nope", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetOldestMessageInfo(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"
	s.UpsertMessage(textMsg(chat, "new", 200, "newer"))
	s.UpsertMessage(textMsg(chat, "old", 100, "older"))

	info, err := s.GetOldestMessageInfo(chat)
	if err != nil {
		t.Fatalf("GetOldestMessageInfo: %v", err)
	}
	if info.MsgID != "old" || info.Timestamp.Unix() != 100 {
		t.Errorf("oldest = %+v, want old@100", info)
	}
}

func TestGetOldestMessageInfo_EmptyChat(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOldestMessageInfo("123@s.whatsapp.net"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMarkMediaDownloaded(t *testing.T) {
	s := newTestStore(t)
	chat := "123@s.whatsapp.net"
	s.UpsertMessage(UpsertMessageParams{
		ChatJID: chat, MsgID: "m1", Timestamp: time.Unix(100, 0),
		MediaType: "image", DirectPath: "/d", MediaKey: []byte{1, 2, 3},
	})

	when := time.Unix(5000, 0).UTC()
	if err := s.MarkMediaDownloaded(chat, "m1", "/tmp/pic.jpg", when); err != nil {
		t.Fatalf("MarkMediaDownloaded: %v", err)
	}

	info, err := s.GetMediaDownloadInfo(chat, "m1")
	if err != nil {
		t.Fatalf("GetMediaDownloadInfo: %v", err)
	}
	if info.LocalPath != "/tmp/pic.jpg" {
		t.Errorf("local_path = %q", info.LocalPath)
	}
	if !info.DownloadedAt.Equal(when) {
		t.Errorf("downloaded_at = %v, want %v", info.DownloadedAt, when)
	}

	if err := s.MarkMediaDownloaded(chat, "missing", "/x", when); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing message: got %v, want ErrNotFound", err)
	}
}
