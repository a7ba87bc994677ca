package app

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	waCommon "go.mau.fi/whatsmeow/proto/waCommon"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	waHistorySync "go.mau.fi/whatsmeow/proto/waHistorySync"
	waWeb "go.mau.fi/whatsmeow/proto/waWeb"
	"google.golang.org/protobuf/proto"

	"wacli/internal/store"
)

func historyResponse(chatJID string, end bool, msgs ...*waWeb.WebMessageInfo) *events.HistorySync {
	hsMsgs := make([]*waHistorySync.HistorySyncMsg, len(msgs))
	for i, m := range msgs {
		hsMsgs[i] = &waHistorySync.HistorySyncMsg{Message: m}
	}
	conv := &waHistorySync.Conversation{
		ID:       proto.String(chatJID),
		Messages: hsMsgs,
	}
	if end {
		conv.EndOfHistoryTransfer = proto.Bool(true)
		conv.EndOfHistoryTransferType = waHistorySync.Conversation_COMPLETE_AND_NO_MORE_MESSAGE_REMAIN_ON_PRIMARY.Enum()
	}
	return &events.HistorySync{
		Data: &waHistorySync.HistorySync{
			SyncType:      waHistorySync.HistorySync_ON_DEMAND.Enum(),
			Conversations: []*waHistorySync.Conversation{conv},
		},
	}
}

func webMessage(chatJID, id string, ts time.Time, text string) *waWeb.WebMessageInfo {
	return &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			RemoteJID: proto.String(chatJID),
			FromMe:    proto.Bool(false),
			ID:        proto.String(id),
		},
		MessageTimestamp: proto.Uint64(uint64(ts.Unix())),
		Message:          &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestBackfillHistory_AddsOlderMessages(t *testing.T) {
	a, f := newTestApp(t)

	chat := types.JID{User: "123", Server: types.DefaultUserServer}
	chatStr := chat.String()
	base := time.Unix(1000, 0).UTC()

	if err := a.DB().UpsertChat(chatStr, store.ChatKindDM, "Alice", base); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := a.DB().UpsertMessage(store.UpsertMessageParams{
		ChatJID: chatStr, MsgID: "m2", SenderJID: chatStr, SenderName: "Alice",
		Timestamp: base.Add(2 * time.Second), Text: "newer",
	}); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	f.onDemandHistory = func(lastKnown *types.MessageInfo, count int) *events.HistorySync {
		if lastKnown == nil || lastKnown.ID != "m2" {
			t.Errorf("anchor = %+v, want the oldest stored message m2", lastKnown)
		}
		return historyResponse(chatStr, true,
			webMessage(chatStr, "m1", base.Add(1*time.Second), "older"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := a.BackfillHistory(ctx, BackfillOptions{
		ChatJID:        chatStr,
		Count:          50,
		Requests:       1,
		WaitPerRequest: 1 * time.Second,
		IdleExit:       200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("BackfillHistory: %v", err)
	}
	if res.MessagesAdded < 1 {
		t.Errorf("messages_added = %d, want ≥ 1", res.MessagesAdded)
	}
	if res.RequestsSent != 1 {
		t.Errorf("requests_sent = %d, want 1", res.RequestsSent)
	}
	if !res.ReachedEnd {
		t.Error("reached_end = false, want true")
	}

	oldest, err := a.DB().GetOldestMessageInfo(chatStr)
	if err != nil {
		t.Fatalf("GetOldestMessageInfo: %v", err)
	}
	if oldest.MsgID != "m1" {
		t.Errorf("oldest = %q, want m1", oldest.MsgID)
	}
}

func TestBackfillHistory_EmptyChatUsesNowAnchor(t *testing.T) {
	a, f := newTestApp(t)
	chat := types.JID{User: "456", Server: types.DefaultUserServer}
	chatStr := chat.String()

	f.onDemandHistory = func(lastKnown *types.MessageInfo, count int) *events.HistorySync {
		if lastKnown == nil || lastKnown.ID != anchorMsgID {
			t.Errorf("anchor = %+v, want the placeholder anchor", lastKnown)
		}
		if !lastKnown.IsFromMe {
			t.Error("placeholder anchor should be from-me")
		}
		return historyResponse(chatStr, true,
			webMessage(chatStr, "h1", time.Unix(500, 0), "found one"))
	}

	res, err := a.BackfillHistory(context.Background(), BackfillOptions{
		ChatJID:        chatStr,
		Requests:       1,
		WaitPerRequest: 1 * time.Second,
		IdleExit:       200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("BackfillHistory: %v", err)
	}
	if res.MessagesAdded != 1 {
		t.Errorf("messages_added = %d, want 1", res.MessagesAdded)
	}
}

func TestBackfillHistory_NoResponseReturnsAtIdle(t *testing.T) {
	a, _ := newTestApp(t)
	chatStr := "789@s.whatsapp.net"

	// The fake never responds — the phone ignoring requests is common.
	start := time.Now()
	res, err := a.BackfillHistory(context.Background(), BackfillOptions{
		ChatJID:        chatStr,
		Requests:       3,
		WaitPerRequest: 150 * time.Millisecond,
		IdleExit:       150 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("BackfillHistory: %v", err)
	}
	if res.MessagesAdded != 0 {
		t.Errorf("messages_added = %d, want 0", res.MessagesAdded)
	}
	if res.ReachedEnd {
		t.Error("reached_end should be false without a completion flag")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("idle cap did not bound the loop: %v", elapsed)
	}
}

func TestBackfillHistory_RequiresChat(t *testing.T) {
	a, _ := newTestApp(t)
	if _, err := a.BackfillHistory(context.Background(), BackfillOptions{}); err == nil {
		t.Fatal("expected error for missing chat jid")
	}
}
